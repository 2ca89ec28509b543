package events

// Kind identifies a domain event variant.
type Kind int

const (
	KindUnknown Kind = iota

	// Ticket events
	KindTicketCreated
	KindTicketUpdated
	KindTicketDeleted

	// Comment events
	KindCommentAdded
	KindCommentDeleted

	// Attachment events
	KindAttachmentAdded
	KindAttachmentDeleted

	// Device events
	KindDeviceCreated
	KindDeviceLinked
	KindDeviceUnlinked
	KindDeviceUpdated

	// Project events
	KindProjectAssigned
	KindProjectUnassigned

	// Ticket relationship events
	KindTicketLinked
	KindTicketUnlinked

	// Documentation events
	KindDocumentationCreated
	KindDocumentationUpdated

	// User events
	KindUserCreated
	KindUserUpdated
	KindUserDeleted

	// Internal events, never exposed to webhooks
	KindHeartbeat
	KindViewerCountChanged
	KindNotificationPushed
)

// Event is a single domain event. Data must be JSON-serializable; its
// shape is owned by the emitting subsystem and opaque to consumers like
// the webhook pipeline.
type Event struct {
	Kind Kind
	Data any
}

// webhookTypes maps each exposed kind to its stable webhook event-type
// string. Internal kinds are intentionally absent.
var webhookTypes = map[Kind]string{
	KindTicketCreated:        "ticket.created",
	KindTicketUpdated:        "ticket.updated",
	KindTicketDeleted:        "ticket.deleted",
	KindCommentAdded:         "comment.added",
	KindCommentDeleted:       "comment.deleted",
	KindAttachmentAdded:      "attachment.added",
	KindAttachmentDeleted:    "attachment.deleted",
	KindDeviceCreated:        "device.created",
	KindDeviceLinked:         "device.linked",
	KindDeviceUnlinked:       "device.unlinked",
	KindDeviceUpdated:        "device.updated",
	KindProjectAssigned:      "project.assigned",
	KindProjectUnassigned:    "project.unassigned",
	KindTicketLinked:         "ticket.linked",
	KindTicketUnlinked:       "ticket.unlinked",
	KindDocumentationCreated: "documentation.created",
	KindDocumentationUpdated: "documentation.updated",
	KindUserCreated:          "user.created",
	KindUserUpdated:          "user.updated",
	KindUserDeleted:          "user.deleted",
}

// WebhookType returns the webhook event-type string for the kind, or
// ok=false for internal kinds that are not exposed on the webhook surface.
func (k Kind) WebhookType() (string, bool) {
	s, ok := webhookTypes[k]
	return s, ok
}

// String returns the webhook type string for exposed kinds and an internal
// label for the rest. Used for logging only.
func (k Kind) String() string {
	if s, ok := webhookTypes[k]; ok {
		return s
	}
	switch k {
	case KindHeartbeat:
		return "heartbeat"
	case KindViewerCountChanged:
		return "viewer_count_changed"
	case KindNotificationPushed:
		return "notification_pushed"
	default:
		return "unknown"
	}
}

// AllWebhookTypes returns the catalog of subscribable event-type strings,
// in a stable order. The management surface uses this to validate
// subscriptions and populate pickers.
func AllWebhookTypes() []string {
	return []string{
		"ticket.created",
		"ticket.updated",
		"ticket.deleted",
		"comment.added",
		"comment.deleted",
		"attachment.added",
		"attachment.deleted",
		"device.created",
		"device.linked",
		"device.unlinked",
		"device.updated",
		"project.assigned",
		"project.unassigned",
		"ticket.linked",
		"ticket.unlinked",
		"documentation.created",
		"documentation.updated",
		"user.created",
		"user.updated",
		"user.deleted",
	}
}

// ValidWebhookType reports whether s names a subscribable event type.
func ValidWebhookType(s string) bool {
	for _, t := range AllWebhookTypes() {
		if t == s {
			return true
		}
	}
	return false
}
