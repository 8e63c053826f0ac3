// Package login prompts for the session details on the terminal.
package login

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/bizdesk/internal/model"
)

// Result is what the user entered.
type Result struct {
	Session model.Session
	BaseURL string
}

// Prompt runs the login form. Fields already set in defaults are
// prefilled. It returns huh.ErrUserAborted when the form is cancelled.
func Prompt(defaults Result) (Result, error) {
	r := defaults
	userType := string(defaults.Session.UserType)
	if userType == "" {
		userType = string(model.UserTypeEmployee)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Description("REST root of the business backend").
				Placeholder("http://localhost:5000/api").
				Value(&r.BaseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Token").
				Description("Bearer token issued at login").
				EchoMode(huh.EchoModePassword).
				Value(&r.Session.Token).
				Validate(validateRequired("Token")),
			huh.NewInput().
				Title("User").
				Description("Name or email shown in the header").
				Value(&r.Session.User),
			huh.NewSelect[string]().
				Title("Account type").
				Options(
					huh.NewOption("Employee", string(model.UserTypeEmployee)),
					huh.NewOption("Company", string(model.UserTypeCompany)),
				).
				Value(&userType),
		),
	)

	if err := form.Run(); err != nil {
		return Result{}, err
	}

	r.Session.Token = strings.TrimSpace(r.Session.Token)
	r.Session.User = strings.TrimSpace(r.Session.User)
	r.Session.UserType = model.UserType(userType)
	r.BaseURL = strings.TrimSpace(r.BaseURL)
	return r, nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must start with http:// or https://")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host (e.g., http://localhost:5000/api)")
	}
	return nil
}
