package main

import (
	"fmt"

	"github.com/safnadck/myapplication/apps/api/echo"
	"github.com/safnadck/myapplication/core"
)

// token mints a superuser API token, signed with key or the configured secret when key is empty.
func (cli *commandLine) token(username, key string) error {
	conf := *cli.conf
	if key != "" {
		conf.SecretKey = key
	}

	claims := echoapi.NewClaims(core.Identity{
		ID:          username,
		Username:    username,
		IsSuperuser: true,
	}, &conf)
	tok, err := echoapi.GenerateToken(claims, &conf)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, tok)
	return nil
}
