package main

import (
	"context"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/user"
)

// addUser creates a verified user.User, or updates the one with the same email.
func (cli *commandLine) addUser(nu user.NewUser) error {
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}
	ctx := context.Background()
	now := core.Now()

	usr, err := cli.usrRepo.Get(ctx, nu.Email)
	exists := err == nil
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		usr = user.User{Email: nu.Email, CreatedAt: now}
	}
	usr.Name = nu.Name
	usr.Surname = nu.Surname
	usr.Role = nu.Role
	usr.Verified = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(nu.Password); err != nil {
		return err
	}

	if exists {
		_, err = cli.usrRepo.Update(ctx, usr)
	} else {
		_, err = cli.usrRepo.Create(ctx, usr)
	}
	return err
}
