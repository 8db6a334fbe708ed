package ldap

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/iredadmin/internal/i18n"
	"github.com/isometry/iredadmin/internal/panel"
	"github.com/isometry/iredadmin/internal/password"
)

// Account status values of the accountStatus attribute.
const (
	AccountStatusActive   = "active"
	AccountStatusDisabled = "disabled"
)

// Profile types accepted by UpdateAdmin.
const (
	ProfileGeneral  = "general"
	ProfilePassword = "password"
)

const adminObjectClass = "mailAdmin"

var (
	adminListAttributes = []string{
		"mail", "cn", "accountStatus", "preferredLanguage", "domainGlobalAdmin", "enabledService",
	}
	adminProfileAttributes = append(slices.Clone(adminListAttributes), "objectClass", "shadowLastChange")
)

// Admin is a mail administrator account.
type Admin struct {
	DN                string   `json:"dn"`
	Mail              string   `json:"mail"`
	CN                string   `json:"cn"`
	AccountStatus     string   `json:"accountStatus"`
	PreferredLanguage string   `json:"preferredLanguage,omitempty"`
	GlobalAdmin       bool     `json:"domainGlobalAdmin"`
	EnabledServices   []string `json:"enabledService,omitempty"`
}

// AddAdminForm is the input of AddAdmin. Username is the local part.
type AddAdminForm struct {
	Username          string `json:"username" binding:"required"`
	Domain            string `json:"domain" binding:"required"`
	CN                string `json:"cn"`
	PreferredLanguage string `json:"preferredLanguage"`
	NewPassword       string `json:"newpw"`
	ConfirmPassword   string `json:"confirmpw"`
}

// UpdateForm is the input of UpdateAdmin. General updates read CN and
// Active; password updates read the password fields.
type UpdateForm struct {
	CN              string  `json:"cn"`
	Active          bool    `json:"accountStatus"`
	CurrentPassword *string `json:"oldpw"`
	NewPassword     string  `json:"newpw"`
	ConfirmPassword string  `json:"confirmpw"`
}

// AdminSettings configures an AdminManager.
type AdminSettings struct {
	Policy          password.Policy
	Catalog         i18n.Catalog
	DefaultLanguage string
	PageSize        int
}

// AdminManager handles mail administrator accounts under the admins branch.
type AdminManager struct {
	client   Client
	adminsDN string
	settings AdminSettings
	timeout  time.Duration
}

// NewAdminManager creates a new admin manager instance.
func NewAdminManager(client Client, adminsDN string, settings AdminSettings) *AdminManager {
	if settings.DefaultLanguage == "" {
		settings.DefaultLanguage = i18n.DefaultLanguage
	}
	if settings.PageSize <= 0 {
		settings.PageSize = panel.DefaultPageSize
	}
	return &AdminManager{
		client:   client,
		adminsDN: adminsDN,
		settings: settings,
		timeout:  30 * time.Second,
	}
}

// SetTimeout sets the LDAP operation timeout.
func (am *AdminManager) SetTimeout(timeout time.Duration) {
	am.timeout = timeout
}

// AdminDN returns the entry DN for an admin email.
func (am *AdminManager) AdminDN(email string) string {
	return "mail=" + EscapeDNValue(email) + "," + am.adminsDN
}

// ResolvePreferredLanguage returns the preferredLanguage of dn, or the
// session language when the attribute is missing or the read fails.
func (am *AdminManager) ResolvePreferredLanguage(ctx context.Context, sess *panel.Session, dn string) string {
	fallback := am.settings.DefaultLanguage
	if sess != nil && sess.Lang != "" {
		fallback = sess.Lang
	}

	result, err := am.client.Search(ctx, &SearchRequest{
		BaseDN:     dn,
		Scope:      ScopeBaseObject,
		Filter:     "(objectClass=*)",
		Attributes: []string{"preferredLanguage"},
		TimeLimit:  am.timeout,
	})
	if err != nil || len(result.Entries) == 0 {
		return fallback
	}

	if lang := result.Entries[0].GetAttributeValue("preferredLanguage"); lang != "" {
		return lang
	}
	return fallback
}

// ListAvailableLanguages returns the supported languages with an installed pack.
func (am *AdminManager) ListAvailableLanguages(ctx context.Context) []i18n.Language {
	return am.settings.Catalog.Available(ctx)
}

// ListAdmins returns all admin accounts sorted by mail.
func (am *AdminManager) ListAdmins(ctx context.Context) ([]*Admin, error) {
	result, err := am.client.Search(ctx, &SearchRequest{
		BaseDN:     am.adminsDN,
		Scope:      ScopeSingleLevel,
		Filter:     "(objectClass=" + adminObjectClass + ")",
		Attributes: adminListAttributes,
		TimeLimit:  am.timeout,
	})
	if err != nil {
		return nil, panel.StoreError(Describe(err), WrapError("list_admins", err))
	}

	admins := make([]*Admin, 0, len(result.Entries))
	for _, entry := range result.Entries {
		admins = append(admins, entryToAdmin(entry))
	}
	slices.SortFunc(admins, func(a, b *Admin) int { return cmp.Compare(a.Mail, b.Mail) })

	return admins, nil
}

// GetProfile returns the admin account of email.
func (am *AdminManager) GetProfile(ctx context.Context, email string) (*Admin, error) {
	dn := am.AdminDN(email)

	result, err := am.client.Search(ctx, &SearchRequest{
		BaseDN:     dn,
		Scope:      ScopeBaseObject,
		Filter:     fmt.Sprintf("(&(objectClass=%s)(mail=%s))", adminObjectClass, ldap.EscapeFilter(email)),
		Attributes: adminProfileAttributes,
		TimeLimit:  am.timeout,
	})
	if err != nil {
		return nil, panel.StoreError(Describe(err), WrapError("get_admin_profile", err))
	}

	if len(result.Entries) == 0 {
		return nil, panel.StoreError(resultCodeMessage(ldap.LDAPResultNoSuchObject), nil)
	}

	return entryToAdmin(result.Entries[0]), nil
}

// AddAdmin creates a global admin account from form.
func (am *AdminManager) AddAdmin(ctx context.Context, form AddAdminForm) error {
	form = am.withDefaults(form)
	email := form.Username + "@" + form.Domain

	if !panel.IsEmail(email) {
		return panel.NewError(panel.KindInvalidEmail, email)
	}

	hashed, err := am.settings.Policy.Check(form.NewPassword, form.ConfirmPassword)
	if err != nil {
		return err
	}

	dn := am.AdminDN(email)
	req := &AddRequest{
		DN: dn,
		Attributes: map[string][]string{
			"objectClass":       {"top", adminObjectClass},
			"mail":              {email},
			"userPassword":      {hashed},
			"cn":                {form.CN},
			"preferredLanguage": {form.PreferredLanguage},
			"accountStatus":     {AccountStatusActive},
			"domainGlobalAdmin": {"yes"},
		},
	}

	if err := am.client.Add(ctx, req); err != nil {
		if IsAlreadyExistsError(err) {
			return panel.NewError(panel.KindAlreadyExists, email)
		}
		return panel.StoreError(Describe(err), WrapError("add_admin", err))
	}

	tflog.SubsystemInfo(ctx, SubsystemLDAP, "Admin account created", map[string]any{
		"mail": email,
		"dn":   dn,
	})
	return nil
}

// withDefaults normalizes the address parts and fills optional fields.
func (am *AdminManager) withDefaults(form AddAdminForm) AddAdminForm {
	form.Username = strings.ToLower(strings.TrimSpace(form.Username))
	form.Domain = strings.ToLower(strings.TrimSpace(form.Domain))
	form.CN = strings.TrimSpace(form.CN)
	if form.CN == "" {
		form.CN = form.Username
	}
	if form.PreferredLanguage == "" {
		form.PreferredLanguage = am.settings.DefaultLanguage
	}
	return form
}

// UpdateAdmin changes the general profile or the password of email.
// Non-global admins may only update their own account.
func (am *AdminManager) UpdateAdmin(ctx context.Context, sess *panel.Session, profileType, email string, form UpdateForm) error {
	if !sess.CanManage(email) {
		return panel.NewError(panel.KindPermissionDenied, "")
	}

	dn := am.AdminDN(email)

	switch profileType {
	case ProfileGeneral:
		cn := strings.TrimSpace(form.CN)
		if cn == "" {
			cn = panel.LocalPart(email)
		}
		status := AccountStatusDisabled
		if form.Active {
			status = AccountStatusActive
		}

		err := am.client.Modify(ctx, &ModifyRequest{
			DN: dn,
			ReplaceAttributes: map[string][]string{
				"cn":            {cn},
				"accountStatus": {status},
			},
		})
		if err != nil {
			return panel.StoreError(Describe(err), WrapError("update_admin_general", err))
		}
		return nil

	case ProfilePassword:
		hashed, err := am.settings.Policy.Check(form.NewPassword, form.ConfirmPassword)
		if err != nil {
			return err
		}

		reset := form.CurrentPassword == nil && sess.GlobalAdmin
		if !reset {
			current := ""
			if form.CurrentPassword != nil {
				current = *form.CurrentPassword
			}
			if err := am.verifyCurrentPassword(ctx, dn, current); err != nil {
				return err
			}
		}

		return am.changePassword(ctx, dn, hashed)

	default:
		return panel.NewError(panel.KindInvalidProfile, profileType)
	}
}

func (am *AdminManager) verifyCurrentPassword(ctx context.Context, dn, current string) error {
	if current == "" {
		return panel.NewError(panel.KindIncorrectOldPass, "")
	}

	if err := am.client.VerifyPassword(ctx, dn, current); err != nil {
		if IsAuthenticationError(err) {
			return panel.NewError(panel.KindIncorrectOldPass, "")
		}
		return panel.StoreError(Describe(err), err)
	}
	return nil
}

func (am *AdminManager) changePassword(ctx context.Context, dn, hashed string) error {
	err := am.client.Modify(ctx, &ModifyRequest{
		DN:                dn,
		ReplaceAttributes: map[string][]string{"userPassword": {hashed}},
	})
	if err != nil {
		return panel.StoreError(Describe(err), WrapError("change_password", err))
	}

	tflog.SubsystemInfo(ctx, SubsystemLDAP, "Admin password changed", map[string]any{"dn": dn})
	return nil
}

// DeleteAdmins removes each account with its subtree. Authorization is the
// caller's job. Per-account failures are reported in a *panel.BatchError.
func (am *AdminManager) DeleteAdmins(ctx context.Context, emails []string) error {
	if len(emails) == 0 {
		return panel.NewError(panel.KindNoAccountSelected, "")
	}

	return am.forEach(ctx, "delete_admin", emails, func(dn string) error {
		return DeleteTree(ctx, am.client, dn)
	})
}

// SetAccountStatus sets accountStatus on every account. Authorization is
// the caller's job.
func (am *AdminManager) SetAccountStatus(ctx context.Context, emails []string, value string) error {
	if len(emails) == 0 {
		return panel.NewError(panel.KindNoAccountSelected, "")
	}
	if value != AccountStatusActive && value != AccountStatusDisabled {
		return panel.NewError(panel.KindTypeError, fmt.Sprintf("invalid account status %q", value))
	}

	return am.forEach(ctx, "set_account_status", emails, func(dn string) error {
		return am.client.Modify(ctx, &ModifyRequest{
			DN:                dn,
			ReplaceAttributes: map[string][]string{"accountStatus": {value}},
		})
	})
}

// forEach applies fn to every account DN in order and collects failures.
func (am *AdminManager) forEach(ctx context.Context, operation string, emails []string, fn func(dn string) error) error {
	failures := make(map[string]string)

	for _, email := range emails {
		if err := fn(am.AdminDN(email)); err != nil {
			failures[email] = Describe(err)
			tflog.SubsystemWarn(ctx, SubsystemLDAP, "Batch item failed", map[string]any{
				"operation": operation,
				"mail":      email,
				"error":     err.Error(),
			})
		}
	}

	if len(failures) > 0 {
		return &panel.BatchError{Failures: failures}
	}
	return nil
}

// Authenticate verifies an admin's password and builds the request session.
func (am *AdminManager) Authenticate(ctx context.Context, email, secret string) (*panel.Session, error) {
	email = panel.NormalizeEmail(email)
	if !panel.IsEmail(email) {
		return nil, panel.NewError(panel.KindInvalidCredentials, "")
	}

	if err := am.client.VerifyPassword(ctx, am.AdminDN(email), secret); err != nil {
		if IsAuthenticationError(err) || IsNotFoundError(err) {
			return nil, panel.NewError(panel.KindInvalidCredentials, "")
		}
		return nil, panel.StoreError(Describe(err), err)
	}

	admin, err := am.GetProfile(ctx, email)
	if err != nil {
		return nil, err
	}

	if admin.AccountStatus != AccountStatusActive {
		return nil, panel.NewError(panel.KindAccountDisabled, "")
	}

	lang := admin.PreferredLanguage
	if !i18n.IsSupported(lang) {
		lang = am.settings.DefaultLanguage
	}

	return &panel.Session{
		Username:    email,
		GlobalAdmin: admin.GlobalAdmin,
		Lang:        lang,
		PageSize:    am.settings.PageSize,
	}, nil
}

func entryToAdmin(entry *ldap.Entry) *Admin {
	return &Admin{
		DN:                entry.DN,
		Mail:              entry.GetAttributeValue("mail"),
		CN:                entry.GetAttributeValue("cn"),
		AccountStatus:     entry.GetAttributeValue("accountStatus"),
		PreferredLanguage: entry.GetAttributeValue("preferredLanguage"),
		GlobalAdmin:       strings.EqualFold(entry.GetAttributeValue("domainGlobalAdmin"), "yes"),
		EnabledServices:   entry.GetAttributeValues("enabledService"),
	}
}
