// Package all imports every delegated widget provider.
package all

import (
	_ "github.com/TecharoHQ/captchamodal/lib/widget/aliyun"
	_ "github.com/TecharoHQ/captchamodal/lib/widget/geetest"
	_ "github.com/TecharoHQ/captchamodal/lib/widget/hcaptcha"
	_ "github.com/TecharoHQ/captchamodal/lib/widget/recaptcha"
	_ "github.com/TecharoHQ/captchamodal/lib/widget/turnstile"
)
