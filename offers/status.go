package offers

// Status is the client-side semantic state of a negotiation. Transitions
// happen server-side; this client only observes them by refetching.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// statusMap translates the server's status codes. The "contraoferta"
// interim state displays as pending; "vendida" is a completed sale.
var statusMap = map[string]Status{
	"pendiente":    StatusPending,
	"contraoferta": StatusPending,
	"aceptada":     StatusAccepted,
	"rechazada":    StatusRejected,
	"completada":   StatusCompleted,
	"vendida":      StatusCompleted,
}

// MapStatus translates a server status code to a client state. Unrecognized
// codes pass through verbatim so a new server state displays raw instead of
// being mislabeled or crashing the view.
func MapStatus(serverCode string) Status {
	if s, ok := statusMap[serverCode]; ok {
		return s
	}
	return Status(serverCode)
}

// IsTerminal reports whether no further transition can leave the state.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}
