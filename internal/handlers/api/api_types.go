package api

import (
	"time"

	"github.com/triarqhealth/iam-portal/internal/requests"
	"github.com/triarqhealth/iam-portal/model"
)

const apiVersion = "1.0"

type APIResponse struct {
	APIVersion string        `json:"apiVersion"`
	Data       any           `json:"data,omitempty"`
	Error      *APIErrorInfo `json:"error,omitempty"`
}

type APIErrorInfo struct {
	Code    int              `json:"code"`
	Message string           `json:"message"`
	Errors  []APIErrorDetail `json:"errors,omitempty"`
}

type APIErrorDetail struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func NewDataResponse(data any) APIResponse {
	return APIResponse{
		APIVersion: apiVersion,
		Data:       data,
	}
}

func NewErrorResponse(code int, message string, details ...APIErrorDetail) APIResponse {
	return APIResponse{
		APIVersion: apiVersion,
		Error: &APIErrorInfo{
			Code:    code,
			Message: message,
			Errors:  details,
		},
	}
}

type UserInfoResponse struct {
	UserID     uint   `json:"userId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"defaultDepartment"`
	IsIAM      bool   `json:"isIam"`
	IsAdmin    bool   `json:"isAdmin"`
	IsActive   bool   `json:"isActive"`
}

func newUserInfoResponse(user *model.User) UserInfoResponse {
	return UserInfoResponse{
		UserID:     user.ID,
		Name:       user.Name,
		Email:      user.Email,
		Department: user.DefaultDepartment,
		IsIAM:      user.IsIAM,
		IsAdmin:    user.IsAdmin,
		IsActive:   user.IsActive,
	}
}

// RequestResponse is an access request plus the derived fields the dashboard
// renders. Neither derived field is stored.
type RequestResponse struct {
	*model.AccessRequest
	DaysOpen int  `json:"daysOpen"`
	OverSLA  bool `json:"overSla"`
}

func newRequestResponse(req *model.AccessRequest, now time.Time) RequestResponse {
	return RequestResponse{
		AccessRequest: req,
		DaysOpen:      requests.DaysOpen(req, now),
		OverSLA:       requests.IsOverSLA(req, now),
	}
}

func newRequestListResponse(reqs []*model.AccessRequest, now time.Time) []RequestResponse {
	out := make([]RequestResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, newRequestResponse(req, now))
	}
	return out
}
