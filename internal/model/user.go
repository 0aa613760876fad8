package model

// User represents a box-office operator or customer account as
// stored in the `users` table.  Only login needs it: the seat
// reservation core identifies buyers by an opaque reference.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – CASHIER or CUSTOMER.
//  IsActive     – whether the account may log in.
type User struct {
	ID           uint64 // users.id
	Email        string // users.email
	PasswordHash string // users.password_hash
	Role         string // users.role
	IsActive     bool   // users.is_active
}
