package dto

import (
	"strings"

	"github.com/spec-kit/interaction-tracker/internal/domain"
	"github.com/spec-kit/interaction-tracker/internal/service"
)

// LoginRequest payload.
type LoginRequest struct {
	Username   string   `json:"username" form:"username" validate:"required,max=64"`
	Password   string   `json:"password" form:"password" validate:"required"`
	RememberMe FormBool `json:"remember_me" form:"remember_me"`
}

// RegisterRequest payload.
type RegisterRequest struct {
	Username  string `json:"username" form:"username" validate:"required,max=64"`
	Password  string `json:"password" form:"password" validate:"required"`
	Password2 string `json:"password2" form:"password2" validate:"required,eqfield=Password"`
}

// InteractionRequest is the create and edit form of an interaction.
type InteractionRequest struct {
	ClientID         FormID   `json:"client_id" form:"client_id" validate:"omitempty,gt=0"`
	ClientName       string   `json:"client_name" form:"client_name" validate:"required_without=ClientID,max=128"`
	ClientPhone      string   `json:"client_phone" form:"client_phone" validate:"required_without=ClientID,max=40"`
	Channel          string   `json:"channel" form:"channel" validate:"required,interaction_channel"`
	Category         string   `json:"category" form:"category" validate:"required,interaction_category"`
	Description      string   `json:"description" form:"description" validate:"notblank"`
	Status           string   `json:"status" form:"status" validate:"omitempty,interaction_status"`
	HadRemoteSession FormBool `json:"had_remote_session" form:"had_remote_session"`
}

// Input converts the form into service input.
func (r InteractionRequest) Input() service.InteractionInput {
	return service.InteractionInput{
		ClientID:         r.ClientID.Ptr(),
		ClientName:       strings.TrimSpace(r.ClientName),
		ClientPhone:      strings.TrimSpace(r.ClientPhone),
		Channel:          domain.InteractionChannel(r.Channel),
		Category:         domain.InteractionCategory(r.Category),
		Description:      r.Description,
		Status:           domain.InteractionStatus(r.Status),
		HadRemoteSession: bool(r.HadRemoteSession),
	}
}

// ClientRequest payload.
type ClientRequest struct {
	Name  string `json:"name" form:"name" validate:"notblank,max=128"`
	Phone string `json:"phone" form:"phone" validate:"notblank,max=40"`
}

// AddUserRequest is the supervisor "add user" form.
type AddUserRequest struct {
	Username     string   `json:"username" form:"username" validate:"required,max=64"`
	Password     string   `json:"password" form:"password" validate:"required"`
	Password2    string   `json:"password2" form:"password2" validate:"required,eqfield=Password"`
	IsSupervisor FormBool `json:"is_supervisor" form:"is_supervisor"`
}

// Input converts the form into service input.
func (r AddUserRequest) Input() service.AddUserInput {
	return service.AddUserInput{
		Username:     r.Username,
		Password:     r.Password,
		Confirm:      r.Password2,
		IsSupervisor: bool(r.IsSupervisor),
	}
}

// EditUserRequest changes a username; a blank password keeps the current one.
type EditUserRequest struct {
	Username  string `json:"username" form:"username" validate:"required,max=64"`
	Password  string `json:"password" form:"password"`
	Password2 string `json:"password2" form:"password2" validate:"eqfield=Password"`
}

// Input converts the form into service input.
func (r EditUserRequest) Input() service.EditUserInput {
	return service.EditUserInput{Username: r.Username, Password: r.Password, Confirm: r.Password2}
}
