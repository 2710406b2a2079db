package mongodb

const (
	UsersCollection = "users"
)
