package users

type UserRepo interface {
	Insert(user *User) error
	GetByEmail(email string) (*User, error)
	GetByID(ID string) (*User, error)
	SetLastLogin(id string) error
	Count() int
}
