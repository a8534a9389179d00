package mail

import (
	"fmt"

	"github.com/triarqhealth/iam-portal/model"
)

// PortalInfo names the portal in outgoing mail and links back to it.
type PortalInfo struct {
	SiteName string
	BaseURL  string
}

// SendStatusChanged notifies a requester that the status of their access
// request changed.
func SendStatusChanged(sender MailSender, portal PortalInfo, req *model.AccessRequest, oldStatus, newStatus string) error {
	signIn := fmt.Sprintf("Sign in to %s to view the full request history.", portal.SiteName)
	if portal.BaseURL != "" {
		signIn = fmt.Sprintf("Sign in to %s at %s to view the full request history.", portal.SiteName, portal.BaseURL)
	}
	body := fmt.Sprintf(
		"Hello %s,\n\n"+
			"The status of your access request %s (%s) changed from %q to %q.\n\n"+
			"Requested access: %s\n"+
			"Current assignee: %s\n\n"+
			"%s\n",
		req.RequesterName, req.ID, req.SystemDisplay(), oldStatus, newStatus,
		req.RequestedRoleOrPermission, assigneeLine(req), signIn)
	return sender.Send(&Message{
		To:      []string{req.RequesterEmail},
		Subject: fmt.Sprintf("[%s] is now %s", req.ID, newStatus),
		Body:    body,
	})
}

func assigneeLine(req *model.AccessRequest) string {
	if req.AssigneeName != nil && *req.AssigneeName != "" {
		return *req.AssigneeName
	}
	return "Unassigned"
}
