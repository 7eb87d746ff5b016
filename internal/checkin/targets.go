// File: internal/checkin/targets.go
package checkin

import (
	"github.com/forumsign/forumsign/internal/browser"
	"github.com/forumsign/forumsign/internal/locator"
)

// Check-in surface entry points. The forum runs the stock Discuz daily
// check-in plugin; the plugin address doubles as completion evidence.
const (
	MainSiteURL = "https://www.55188.com"
	SignPageURL = "https://www.55188.com/plugin.php?id=dsu_paulsign:sign"
	signPath    = "dsu_paulsign:sign"
)

// signButtonTarget locates the check-in control on the main site. Ordered
// most specific first; the markup moves between site revisions.
var signButtonTarget = locator.Target{
	Name: "check-in control",
	Strategies: []browser.Selector{
		{By: browser.ByXPath, Expr: "//a[contains(text(), '签到')]"},
		{By: browser.ByXPath, Expr: "//button[contains(text(), '签到')]"},
		{By: browser.ByXPath, Expr: "//div[contains(text(), '签到')]"},
		{By: browser.ByXPath, Expr: "//span[contains(text(), '签到')]"},
		{By: browser.ByXPath, Expr: "//a[contains(@href, 'sign')]"},
		{By: browser.ByXPath, Expr: "//a[contains(@class, 'sign')]"},
	},
}

// evidenceTarget is one completion-evidence probe with the metadata key its
// text is filed under when it resolves.
type evidenceTarget struct {
	// MetaKey names the extracted value in Outcome.Metadata; empty means the
	// probe only votes and contributes no metadata.
	MetaKey  string
	Selector browser.Selector
}

// completionEvidence is the fixed probe set the detector runs against the
// check-in surface. Each resolved probe contributes one weak vote; a probe
// whose text carries the rank phrase is promoted to explicit success.
var completionEvidence = []evidenceTarget{
	{MetaKey: "rank", Selector: browser.Selector{By: browser.ByXPath, Expr: "//*[contains(text(), '您的签到排名')]"}},
	{MetaKey: "streak", Selector: browser.Selector{By: browser.ByXPath, Expr: "//*[contains(text(), '连续签到')]"}},
	{MetaKey: "level", Selector: browser.Selector{By: browser.ByXPath, Expr: "//*[contains(text(), '签到等级')]"}},
	{MetaKey: "participants", Selector: browser.Selector{By: browser.ByXPath, Expr: "//*[contains(text(), '今日已有') and contains(text(), '人签到')]"}},
	{Selector: browser.Selector{By: browser.ByXPath, Expr: "//h1[contains(text(), '每日签到')]"}},
}

// rankPhrase promotes a weak probe to explicit success: the rank line only
// renders right after a fresh check-in.
const rankPhrase = "签到排名"

// alreadyDoneTargets match the page's "already checked in today" phrasings.
var alreadyDoneTargets = []browser.Selector{
	{By: browser.ByXPath, Expr: "//*[contains(text(), '今日已签到')]"},
	{By: browser.ByXPath, Expr: "//*[contains(text(), '您今日已经签到')]"},
	{By: browser.ByXPath, Expr: "//*[contains(text(), '签到成功')]"},
	{By: browser.ByXPath, Expr: "//*[contains(text(), '重复签到')]"},
}
