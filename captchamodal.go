// Package captchamodal contains global constants shared by the CAPTCHA dialog
// controller, its views and the command line tool.
package captchamodal

import "time"

// Version is the current version of captchamodal.
//
// This variable is set at build time using the -X linker flag. If not set,
// it defaults to "devel".
var Version = "devel"

// UserAgent is sent with every request to the CAPTCHA configuration server.
var UserAgent = "TecharoHQ/captchamodal:" + Version

// APIPrefix is the path prefix of the endpoints served by the widget host.
const APIPrefix = "/api/"

// CaptchaEndpoint is the path of the challenge descriptor endpoint on the
// configuration server.
const CaptchaEndpoint = "/api/get-captcha"

// DefaultFetchTimeout bounds a single descriptor fetch.
const DefaultFetchTimeout = 30 * time.Second

// DefaultCodeLength is the number of digits a Default challenge expects.
const DefaultCodeLength = 5

// DynamicAttemptExpiry is how long failed attempts count towards the Dynamic rule.
const DynamicAttemptExpiry = 24 * time.Hour

// DefaultDynamicExpression is evaluated for the Dynamic rule when the
// configuration does not set one.
const DefaultDynamicExpression = "failedAttempts > 0"

// ForcedLanguage overrides the language used for dialog strings when set.
var ForcedLanguage = ""
