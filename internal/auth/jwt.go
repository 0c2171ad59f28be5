package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"schoolportal/internal/model"
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// Identity is what a token asserts about its bearer.
type Identity struct {
	Subject     string
	Email       string
	Role        string
	Username    string
	Permissions *model.PermissionSet
}

// Claims represents JWT payload.
type Claims struct {
	Subject     string               `json:"sub"`
	Email       string               `json:"email,omitempty"`
	Role        string               `json:"role"`
	Username    string               `json:"username,omitempty"`
	Permissions *model.PermissionSet `json:"permissions,omitempty"`
	Refresh     bool                 `json:"refresh,omitempty"`
	jwt.RegisteredClaims
}

func newClaims(id Identity, issuer string, exp time.Time, refresh bool) Claims {
	return Claims{
		Subject:     id.Subject,
		Email:       id.Email,
		Role:        id.Role,
		Username:    id.Username,
		Permissions: id.Permissions,
		Refresh:     refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.Subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

// Issue issues signed access and refresh tokens.
func Issue(id Identity, issuer, key string, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	accessExp := time.Now().Add(accessTTL)
	refreshExp := time.Now().Add(refreshTTL)

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, newClaims(id, issuer, accessExp, false)).SignedString([]byte(key))
	if err != nil {
		return TokenPair{}, err
	}

	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, newClaims(id, issuer, refreshExp, true)).SignedString([]byte(key))
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}

// Capability names a guarded area of the portal.
type Capability string

const (
	CapStudents      Capability = "manageStudents"
	CapTeachers      Capability = "manageTeachers"
	CapAnnouncements Capability = "manageAnnouncements"
	CapEvents        Capability = "manageEvents"
	CapExams         Capability = "manageExams"
	CapAttendance    Capability = "manageAttendance"
	CapResults       Capability = "viewAllResults"
	CapTransport     Capability = "manageTransport"
)

// Can reports whether the bearer may change data guarded by capability.
// Admins may do everything and students nothing. Teachers need the matching
// flag or full admin access; transport is admin territory only.
func (c Claims) Can(capability Capability) bool {
	switch model.Role(c.Role) {
	case model.RoleAdmin:
		return true
	case model.RoleTeacher:
		p := c.Permissions
		if p == nil {
			return false
		}
		if p.FullAdminAccess {
			return true
		}
		switch capability {
		case CapStudents:
			return p.ManageStudents
		case CapTeachers:
			return p.ManageTeachers
		case CapAnnouncements:
			return p.ManageAnnouncements
		case CapEvents:
			return p.ManageEvents
		case CapExams:
			return p.ManageExams
		case CapResults:
			return p.ManageExams || p.ViewAllResults
		case CapAttendance:
			return p.ManageAttendance
		}
	}
	return false
}
