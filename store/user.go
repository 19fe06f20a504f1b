package store

// User owns conversations. Every store lookup is scoped to a creator id so a
// user can never observe another user's conversations, not even their
// existence.
type User struct {
	ID           int32
	Username     string
	PasswordHash string
	CreatedTs    int64
}

type FindUser struct {
	ID       *int32
	Username *string
}

type DeleteUser struct {
	ID int32
}
