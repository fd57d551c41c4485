package service

import (
	"fmt"
	"html"
)

func passwordResetEmailTemplate(resetURL, appName string, expiry string) (string, string) {
	subject := fmt.Sprintf("Reset your password for %s", appName)
	body := fmt.Sprintf(`<p>You requested to reset your password. Choose a new one here:</p>
<p><a href="%[1]s">%[1]s</a></p>
<p>This link expires in %[2]s and can only be used once.</p>
<p>If you didn't request this, you can safely ignore this email. Your password won't be changed.</p>
<p>Best,<br>The %[3]s Team</p>`, html.EscapeString(resetURL), expiry, html.EscapeString(appName))

	return subject, body
}

func welcomeEmailTemplate(username, dashboardURL, appName string) (string, string) {
	subject := fmt.Sprintf("Welcome to %s!", appName)
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Your account is ready. Add your skills and your first project: <a href="%[2]s">%[2]s</a></p>
<p>Best,<br>The %[3]s Team</p>`, html.EscapeString(username), html.EscapeString(dashboardURL), html.EscapeString(appName))

	return subject, body
}

func projectSharedEmailTemplate(username, title, role, projectURL, appName string) (string, string) {
	subject := fmt.Sprintf("You were added to %q on %s", title, appName)
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>You now have the %s role on <strong>%s</strong>: <a href="%[4]s">%[4]s</a></p>
<p>Best,<br>The %[5]s Team</p>`,
		html.EscapeString(username), html.EscapeString(role), html.EscapeString(title),
		html.EscapeString(projectURL), html.EscapeString(appName))

	return subject, body
}
