package types

// Message is the closed tagged union of everything a process can send or
// receive (§3). Dispatch over it is a direct type switch (design note §9:
// "the message type is a closed tagged union; dispatch should be a direct
// match").
type Message interface {
	isMessage()
	// Kind returns a short, stable tag for logging.
	Kind() string
}

type BlockMessage struct {
	Block Signed[*Block]
}

func (BlockMessage) isMessage()    {}
func (BlockMessage) Kind() string  { return "Block" }

type NewVoteMessage struct {
	Vote Signed[VoteData]
}

func (NewVoteMessage) isMessage()   {}
func (NewVoteMessage) Kind() string { return "NewVote" }

type QCMessage struct {
	QC ThreshSigned[VoteData]
}

func (QCMessage) isMessage()   {}
func (QCMessage) Kind() string { return "QC" }

type EndViewMessage struct {
	EndView Signed[View]
}

func (EndViewMessage) isMessage()   {}
func (EndViewMessage) Kind() string { return "EndView" }

type EndViewCertMessage struct {
	EndViewCert ThreshSigned[View]
}

func (EndViewCertMessage) isMessage()   {}
func (EndViewCertMessage) Kind() string { return "EndViewCert" }

type StartViewMessage struct {
	StartView Signed[StartView]
}

func (StartViewMessage) isMessage()   {}
func (StartViewMessage) Kind() string { return "StartView" }

// Outbound pairs a message with an optional destination; nil means
// broadcast to all processes (§6.1).
type Outbound struct {
	Message Message
	To      *ProcessID
}

// Broadcast builds an Outbound addressed to every process.
func Broadcast(m Message) Outbound {
	return Outbound{Message: m}
}

// Unicast builds an Outbound addressed to a single process.
func Unicast(m Message, to ProcessID) Outbound {
	return Outbound{Message: m, To: &to}
}
