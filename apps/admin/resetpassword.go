package main

import (
	"context"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.Get(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}

	uu := user.UpdateUser{Password: pwd, PasswordConfirm: pwd}
	if err = uu.Validate(usr, cli.validate); err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = core.Now()
	_, err = cli.usrRepo.Update(ctx, usr)
	return err
}
