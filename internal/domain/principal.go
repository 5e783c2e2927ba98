package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PrincipalKind tags which profile a Principal carries.
type PrincipalKind string

const (
	PrincipalIdentified PrincipalKind = "identified"
	PrincipalAnonymous  PrincipalKind = "anonymous"
)

// EducationLevel is the single-letter code of the highest completed
// education of an identified user.
type EducationLevel string

const (
	EducationUnset      EducationLevel = ""
	EducationPrimary    EducationLevel = "P"
	EducationSecondary  EducationLevel = "S"
	EducationBachelor   EducationLevel = "B"
	EducationLicentiate EducationLevel = "L"
	EducationMaster     EducationLevel = "M"
	EducationDoctorate  EducationLevel = "D"
	EducationOther      EducationLevel = "O"
)

// Valid reports whether the level is one of the known codes.
func (l EducationLevel) Valid() bool {
	switch l {
	case EducationUnset, EducationPrimary, EducationSecondary, EducationBachelor,
		EducationLicentiate, EducationMaster, EducationDoctorate, EducationOther:
		return true
	}
	return false
}

// Principal is any registered identity capable of authenticating.
// Exactly one of Identified and Anonymous is set, matching Kind.
type Principal struct {
	ID         int64
	Kind       PrincipalKind
	Name       string
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Identified *IdentifiedProfile
	Anonymous  *AnonymousProfile
}

// IdentifiedProfile holds the credentials and profile of an email/password user.
type IdentifiedProfile struct {
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	EducationLevel EducationLevel
	FieldOfStudyID *int64
	IsStaff        bool
	IsAuthor       bool
	AvatarKey      string
}

// AnonymousProfile holds the generated identifier of an anonymous user.
type AnonymousProfile struct {
	AnonymousID uuid.UUID
}

var (
	errBothProfiles    = errors.New("principal carries both identified and anonymous profiles")
	errMissingProfile  = errors.New("principal carries no profile")
	errKindMismatch    = errors.New("principal kind does not match its profile")
	errMissingEmail    = errors.New("identified principal requires an email")
	errMissingHash     = errors.New("identified principal requires a password hash")
	errMissingAnonUUID = errors.New("anonymous principal requires an anonymous id")
)

// Validate checks the identified-xor-anonymous invariant.
func (p *Principal) Validate() error {
	switch {
	case p.Identified != nil && p.Anonymous != nil:
		return errBothProfiles
	case p.Identified == nil && p.Anonymous == nil:
		return errMissingProfile
	}

	switch p.Kind {
	case PrincipalIdentified:
		if p.Identified == nil {
			return errKindMismatch
		}
		if strings.TrimSpace(p.Identified.Email) == "" {
			return errMissingEmail
		}
		if p.Identified.PasswordHash == "" {
			return errMissingHash
		}
	case PrincipalAnonymous:
		if p.Anonymous == nil {
			return errKindMismatch
		}
		if p.Anonymous.AnonymousID == uuid.Nil {
			return errMissingAnonUUID
		}
	default:
		return errKindMismatch
	}
	return nil
}

// IsAnonymous reports whether the principal is anonymous.
func (p *Principal) IsAnonymous() bool {
	return p.Kind == PrincipalAnonymous
}

// IsStaff reports whether the principal is an identified staff member.
func (p *Principal) IsStaff() bool {
	return p.Identified != nil && p.Identified.IsStaff
}

// Sanitized returns a copy without the password hash.
func (p *Principal) Sanitized() *Principal {
	if p == nil {
		return nil
	}
	out := *p
	if p.Identified != nil {
		ident := *p.Identified
		ident.PasswordHash = ""
		if p.Identified.FieldOfStudyID != nil {
			id := *p.Identified.FieldOfStudyID
			ident.FieldOfStudyID = &id
		}
		out.Identified = &ident
	}
	if p.Anonymous != nil {
		anon := *p.Anonymous
		out.Anonymous = &anon
	}
	return &out
}

// NewIdentified builds an identified principal.
func NewIdentified(name string, profile IdentifiedProfile) *Principal {
	return &Principal{
		Kind:       PrincipalIdentified,
		Name:       name,
		Identified: &profile,
	}
}

// NewAnonymous builds an anonymous principal for the given identifier.
func NewAnonymous(id uuid.UUID) *Principal {
	return &Principal{
		Kind:      PrincipalAnonymous,
		Anonymous: &AnonymousProfile{AnonymousID: id},
	}
}
