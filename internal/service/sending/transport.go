package sending

import "context"

// Message is a fully-rendered outbound email: personalization and tracking
// injection are complete by the time one of these reaches a Transport.
type Message struct {
	To        string
	FromEmail string
	FromName  string
	Subject   string
	HTML      string
	Text      string
}

// Transport delivers one message. Any implementation satisfying this
// contract (SMTP relay, transactional API) is substitutable. An error return
// is recorded on the job as a terminal failure; there is no retry here.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}
