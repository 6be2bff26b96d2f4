package mailer

import "fmt"

// InviteMessage renders the group invitation e-mail. The link stays valid
// for the invitation's configured lifetime.
func InviteMessage(to, inviterName, groupName, inviteURL string) Message {
	html := fmt.Sprintf(`
		<h1>TodoBus Group Invitation</h1>
		<p>Hello,</p>
		<p>%s has invited you to join the group "%s".</p>
		<p>Click the link below to accept the invitation:</p>
		<p><a href="%s" style="display: inline-block; background-color: #3B82F6; color: white; padding: 10px 15px; text-decoration: none; border-radius: 5px;">Accept Invitation</a></p>
		<p>This invitation is valid for 7 days.</p>
		<p>If you are not a TodoBus member yet, you will need to create an account first.</p>
		<p>Thanks,<br>The TodoBus Team</p>
	`, inviterName, groupName, inviteURL)

	return Message{
		To:      to,
		Subject: fmt.Sprintf("TodoBus: you have been invited to %s", groupName),
		HTML:    html,
	}
}
