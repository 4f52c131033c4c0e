package auth

// CustomClaims are the optional application claims carried by a token.
// A nil field means the claim was absent or had the wrong type.
type CustomClaims struct {
	SystemUser  *string  `json:"system_user,omitempty"`
	TestContext *string  `json:"test_context,omitempty"`
	Environment *string  `json:"environment,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// User is the identity established by a verified token. It is built once per
// verification and never persisted.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	CustomClaims CustomClaims `json:"custom_claims"`
}

// HasPermission reports whether the user carries the named permission.
func (u *User) HasPermission(permission string) bool {
	for _, p := range u.CustomClaims.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// IsSystemUser reports whether the token was issued for a system account.
func (u *User) IsSystemUser() bool {
	return u.CustomClaims.SystemUser != nil && *u.CustomClaims.SystemUser != ""
}

// FromPayload narrows a verified claim set into a User. Custom claims are
// looked up under namespace first, then under the bare name. It never fails:
// values of an unexpected type become empty strings or absent claims.
func FromPayload(payload map[string]any, namespace string) User {
	user := User{
		ID:    stringClaim(payload, "sub"),
		Email: stringClaim(payload, "email"),
	}

	user.CustomClaims.SystemUser = optionalString(lookup(payload, namespace, "system_user"))
	user.CustomClaims.TestContext = optionalString(lookup(payload, namespace, "test_context"))
	user.CustomClaims.Environment = optionalString(lookup(payload, namespace, "environment"))
	user.CustomClaims.Permissions = stringSlice(lookup(payload, namespace, "permissions"))

	return user
}

func lookup(payload map[string]any, namespace, name string) any {
	if namespace != "" {
		if v, ok := payload[namespace+name]; ok {
			return v
		}
	}
	return payload[name]
}

func stringClaim(payload map[string]any, name string) string {
	s, _ := payload[name].(string)
	return s
}

func optionalString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// stringSlice accepts []any or []string whose elements are all strings.
func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return append([]string{}, vals...)
	case []any:
		out := make([]string, 0, len(vals))
		for _, e := range vals {
			s, ok := e.(string)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		return out
	}
	return nil
}
