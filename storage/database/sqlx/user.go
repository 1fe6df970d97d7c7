package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/user"
)

const userColumns = `email, name, surname, role, verified, password_hash, registration_number, birth_date, created_at, updated_at`

var userOrderable = map[string]bool{
	"email": true, "name": true, "surname": true, "role": true, "created_at": true, "updated_at": true,
}

type userRow struct {
	Email              string      `db:"email"`
	Name               string      `db:"name"`
	Surname            string      `db:"surname"`
	Role               string      `db:"role"`
	Verified           bool        `db:"verified"`
	PasswordHash       null.Bytes  `db:"password_hash"`
	RegistrationNumber null.String `db:"registration_number"`
	BirthDate          null.Time   `db:"birth_date"`
	CreatedAt          time.Time   `db:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at"`
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo userRepository) row(usr user.User) userRow {
	return userRow{
		Email:              usr.Email,
		Name:               usr.Name,
		Surname:            usr.Surname,
		Role:               usr.Role,
		Verified:           usr.Verified,
		PasswordHash:       null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		RegistrationNumber: nullString(usr.RegistrationNumber),
		BirthDate:          nullDate(usr.BirthDate),
		CreatedAt:          usr.CreatedAt.UTC(),
		UpdatedAt:          usr.UpdatedAt.UTC(),
	}
}

func (repo userRepository) unrow(r userRow) user.User {
	return user.User{
		Email:              r.Email,
		Name:               r.Name,
		Surname:            r.Surname,
		Role:               r.Role,
		Verified:           r.Verified,
		PasswordHash:       r.PasswordHash.Bytes,
		RegistrationNumber: r.RegistrationNumber.String,
		BirthDate:          dateString(r.BirthDate),
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
}

func (repo userRepository) Create(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	db := core.GetExec(repo.exec, exec)
	r := repo.row(usr)
	q := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, db.Rebind(q),
		r.Email, r.Name, r.Surname, r.Role, r.Verified, r.PasswordHash,
		r.RegistrationNumber, r.BirthDate, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return user.User{}, trapErr(err, "inserting user", "user", usr.Email)
	}
	return repo.unrow(r), nil
}

func (repo userRepository) Get(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error) {
	db := core.GetExec(repo.exec, exec)
	var r userRow
	q := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	if err := sqlx.GetContext(ctx, db, &r, db.Rebind(q), email); err != nil {
		return user.User{}, trapErr(err, "getting user", "user", email)
	}
	return repo.unrow(r), nil
}

func (repo userRepository) Query(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	db := core.GetExec(repo.exec, exec)

	var (
		where []string
		args  []interface{}
	)
	if filter.Name != "" {
		where = append(where, "LOWER(name) LIKE ?")
		args = append(args, strings.ToLower(filter.Name)+"%")
	}
	if filter.Surname != "" {
		where = append(where, "LOWER(surname) LIKE ?")
		args = append(args, strings.ToLower(filter.Surname)+"%")
	}
	if filter.Role != "" {
		where = append(where, "role = ?")
		args = append(args, filter.Role)
	}
	if filter.Verified != nil {
		where = append(where, "verified = ?")
		args = append(args, *filter.Verified)
	}

	q := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += orderBy(ordering, userOrderable, "email ASC")

	var rows []userRow
	if err := sqlx.SelectContext(ctx, db, &rows, db.Rebind(q), args...); err != nil {
		return nil, trapErr(err, "querying users", "user", "")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, repo.unrow(r))
	}
	return users, nil
}

func (repo userRepository) Update(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	db := core.GetExec(repo.exec, exec)
	r := repo.row(usr)
	q := `UPDATE users SET name = ?, surname = ?, role = ?, verified = ?, password_hash = ?,
		registration_number = ?, birth_date = ?, updated_at = ? WHERE email = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q),
		r.Name, r.Surname, r.Role, r.Verified, r.PasswordHash,
		r.RegistrationNumber, r.BirthDate, r.UpdatedAt, r.Email,
	)
	if err != nil {
		return user.User{}, trapErr(err, "updating user", "user", usr.Email)
	}
	n, err := rowsAffected(res, "updating user")
	if err != nil {
		return user.User{}, err
	}
	if n == 0 {
		return user.User{}, core.NewNotFoundError("user", usr.Email)
	}
	return repo.Get(ctx, usr.Email, db)
}

func (repo userRepository) Delete(ctx context.Context, emails []string, exec ...core.DBExecutor) (int64, error) {
	if len(emails) == 0 {
		return 0, nil
	}
	db := core.GetExec(repo.exec, exec)
	q, args, err := sqlx.In(`DELETE FROM users WHERE email IN (?)`, emails)
	if err != nil {
		return 0, core.NewPersistenceError("deleting users", err)
	}
	res, err := db.ExecContext(ctx, db.Rebind(q), args...)
	if err != nil {
		key := strings.Join(emails, ",")
		if isForeignKeyViolation(err) {
			return 0, &core.ConflictError{Entity: "user", Key: key, Reason: user.BoundReason}
		}
		return 0, trapErr(err, "deleting users", "user", key)
	}
	return rowsAffected(res, "deleting users")
}
