package mailer

import (
	"fmt"
	"html"
	"time"
)

type Email struct {
	Subject string
	HTML    string
	Text    string
}

// Composer renders a Message into the email body. Links point at the frontend.
type Composer struct {
	FrontendURL string
	TokenTTL    time.Duration
}

func (c Composer) Compose(msg Message) (*Email, error) {
	minutes := int(c.TokenTTL.Minutes())
	name := html.EscapeString(msg.Name)
	code := html.EscapeString(msg.Token)

	switch msg.Kind {
	case KindConfirmAccount:
		link := c.FrontendURL + "/auth/confirm-account"
		return &Email{
			Subject: "UpTask - Confirm your account",
			HTML: fmt.Sprintf(`<p>Hi %s, you have created your UpTask account. It is almost ready, you only need to confirm it.</p>
<p>Visit the following link:</p>
<a href="%s">Confirm account</a>
<p>And enter the code: <b>%s</b></p>
<p>This code expires in %d minutes.</p>`, name, link, code, minutes),
			Text: fmt.Sprintf("Hi %s,\n\nConfirm your UpTask account at %s using the code %s.\nThis code expires in %d minutes.\n",
				msg.Name, link, msg.Token, minutes),
		}, nil
	case KindResetPassword:
		link := c.FrontendURL + "/auth/new-password"
		return &Email{
			Subject: "UpTask - Reset your password",
			HTML: fmt.Sprintf(`<p>Hi %s, you have requested to reset your password.</p>
<p>Visit the following link:</p>
<a href="%s">Reset password</a>
<p>And enter the code: <b>%s</b></p>
<p>This code expires in %d minutes.</p>`, name, link, code, minutes),
			Text: fmt.Sprintf("Hi %s,\n\nReset your UpTask password at %s using the code %s.\nThis code expires in %d minutes.\nIf you did not request it you can ignore this email.\n",
				msg.Name, link, msg.Token, minutes),
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, msg.Kind)
}
