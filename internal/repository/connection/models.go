package connection

import "errors"

var (
	ErrAlreadyExists = errors.New("connection already exists")
	ErrAlreadyJoined = errors.New("connection already joined a room")
	ErrNotFound      = errors.New("connection not found")
)

// Participant is the identity a client presents on join. It lives only
// as long as the connection; nothing about it is persisted.
type Participant struct {
	Id     string `json:"id" validate:"required"`
	Name   string `json:"name" validate:"required,max=64"`
	Avatar string `json:"avatar"`
}

// Membership records which room a joined connection belongs to and who
// joined it.
type Membership struct {
	RoomId      string
	Participant Participant
}
