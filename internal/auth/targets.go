// File: internal/auth/targets.go
package auth

import (
	"github.com/forumsign/forumsign/internal/browser"
	"github.com/forumsign/forumsign/internal/locator"
)

// Login surface entry points.
const (
	// LoginURL is the fixed entry point of the passport login page.
	LoginURL = "https://passport.55188.com/index/login/"
	// MainHost appears in the address after a successful redirect out of
	// the passport domain.
	MainHost = "55188.com"
	// passportHost still being in the address means login did not complete.
	passportHost = "passport."
)

// Locator targets for the login flow. The passport page's markup is not
// stable across site revisions; each target lists its known shapes, most
// specific first.
var (
	usernameTarget = locator.Target{
		Name: "username field",
		Strategies: []browser.Selector{
			{By: browser.ByXPath, Expr: "//input[@placeholder='用户名/Email/手机号码']"},
			{By: browser.ByCSS, Expr: "input[name='username']"},
			{By: browser.ByCSS, Expr: "#username"},
		},
	}

	passwordTarget = locator.Target{
		Name: "password field",
		Strategies: []browser.Selector{
			{By: browser.ByXPath, Expr: "//input[@placeholder='密码']"},
			{By: browser.ByCSS, Expr: "input[type='password']"},
		},
	}

	submitTarget = locator.Target{
		Name: "login submit button",
		Strategies: []browser.Selector{
			{By: browser.ByXPath, Expr: "//button[text()='立即登录']"},
			{By: browser.ByXPath, Expr: "//button[contains(text(), '登录')]"},
			{By: browser.ByCSS, Expr: "button[type='submit']"},
		},
	}

	// challengeTarget matches the interactive verification widgets the
	// passport page occasionally shows. Optional: absence is the normal case.
	challengeTarget = locator.Target{
		Name: "verification challenge",
		Strategies: []browser.Selector{
			{By: browser.ByCSS, Expr: ".geetest_radar_tip"},
			{By: browser.ByXPath, Expr: "//*[contains(@class, 'nc_iconfont')]"},
			{By: browser.ByXPath, Expr: "//*[contains(@class, 'captcha')]"},
		},
	}

	// authenticatedEvidence is evaluated in rank order after submit; the
	// first positive match proves the session is logged in.
	authenticatedEvidence = []locator.Target{
		{
			Name: "logout affordance",
			Strategies: []browser.Selector{
				{By: browser.ByXPath, Expr: "//*[contains(text(), '退出')]"},
			},
		},
		{
			Name: "profile affordance",
			Strategies: []browser.Selector{
				{By: browser.ByXPath, Expr: "//*[contains(text(), '个人中心')]"},
				{By: browser.ByXPath, Expr: "//a[contains(@href, 'home.php?mod=space')]"},
			},
		},
	}

	// loginErrorTarget matches the passport page's explicit error box.
	loginErrorTarget = locator.Target{
		Name: "login error message",
		Strategies: []browser.Selector{
			{By: browser.ByCSS, Expr: ".error"},
			{By: browser.ByXPath, Expr: "//*[contains(@class, 'login-error')]"},
		},
	}
)
