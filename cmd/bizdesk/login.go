package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/bizdesk/internal/credential"
	"github.com/nhle/bizdesk/internal/model"
	"github.com/nhle/bizdesk/internal/session"
	"github.com/nhle/bizdesk/internal/ui/login"
)

func runLogin(configPath string, cfg *model.AppConfig, cmd loginCmd) error {
	res := login.Result{
		Session: model.Session{
			Token:    strings.TrimSpace(cmd.Token),
			User:     cmd.User,
			UserType: model.UserType(cmd.UserType),
		},
		BaseURL: cfg.API.BaseURL,
	}
	if cmd.APIURL != "" {
		res.BaseURL = cmd.APIURL
	}

	if res.Session.Token == "" {
		var err error
		res, err = login.Prompt(res)
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("login form: %w", err)
		}
	}

	if !res.Session.UserType.Valid() {
		return fmt.Errorf("unknown user type %q (want %s or %s)",
			res.Session.UserType, model.UserTypeCompany, model.UserTypeEmployee)
	}

	vault, err := credential.Open()
	if err != nil {
		return err
	}
	if err := session.Save(vault, res.Session); err != nil {
		return err
	}

	if res.BaseURL != "" && res.BaseURL != cfg.API.BaseURL {
		cfg.API.BaseURL = res.BaseURL
		if err := model.SaveConfig(configPath, cfg); err != nil {
			return err
		}
	}

	fmt.Printf("Logged in as %s against %s\n", displayUser(res.Session), cfg.API.BaseURL)
	return nil
}

func runLogout() error {
	vault, err := credential.Open()
	if err != nil {
		return err
	}
	if err := session.Clear(vault); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}
