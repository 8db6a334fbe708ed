// Package i18n knows the console's supported UI languages and which of them
// have a language pack installed.
package i18n

import (
	"context"
	"os"
	"slices"
	"strings"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// DefaultLanguage is used when neither the account nor the session names one.
const DefaultLanguage = "en_US"

// Language is a supported locale.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// languages maps locale codes to display names.
var languages = map[string]string{
	"en_US": "English (US)",
	"zh_CN": "简体中文",
	"zh_TW": "繁体中文",
	"sq_AL": "Albanian",
	"ar_SA": "Arabic",
	"hy_AM": "Armenian",
	"az_AZ": "Azerbaijani",
	"bs_BA": "Bosnian (Serbian Latin)",
	"bg_BG": "Bulgarian",
	"ca_ES": "Català",
	"cy_GB": "Cymraeg",
	"hr_HR": "Croatian (Hrvatski)",
	"cs_CZ": "Czech",
	"da_DK": "Dansk",
	"de_DE": "Deutsch (Deutsch)",
	"de_CH": "Deutsch (Schweiz)",
	"en_GB": "English (GB)",
	"es_ES": "Español",
	"eo":    "Esperanto",
	"et_EE": "Estonian",
	"eu_ES": "Euskara (Basque)",
	"fi_FI": "Finnish (Suomi)",
	"nl_BE": "Flemish",
	"fr_FR": "Français",
	"gl_ES": "Galego (Galician)",
	"ka_GE": "Georgian (Kartuli)",
	"el_GR": "Greek",
	"he_IL": "Hebrew",
	"hi_IN": "Hindi",
	"hu_HU": "Hungarian",
	"is_IS": "Icelandic",
	"id_ID": "Indonesian",
	"ga_IE": "Irish",
	"it_IT": "Italiano",
	"ja_JP": "Japanese (日本語)",
	"ko_KR": "Korean",
	"ku":    "Kurdish (Kurmancî)",
	"lv_LV": "Latvian",
	"lt_LT": "Lithuanian",
	"mk_MK": "Macedonian",
	"ms_MY": "Malay",
	"nl_NL": "Nederlands",
	"ne_NP": "Nepali",
	"nb_NO": "Norsk (Bokmål)",
	"nn_NO": "Norsk (Nynorsk)",
	"fa":    "Persian (Farsi)",
	"pl_PL": "Polski",
	"pt_BR": "Portuguese (Brazilian)",
	"pt_PT": "Portuguese (Standard)",
	"ro_RO": "Romanian",
	"ru_RU": "Русский",
	"sr_CS": "Serbian (Cyrillic)",
	"si_LK": "Sinhala",
	"sk_SK": "Slovak",
	"sl_SI": "Slovenian",
	"sv_SE": "Swedish (Svenska)",
	"th_TH": "Thai",
	"tr_TR": "Türkçe",
	"uk_UA": "Ukrainian",
	"vi_VN": "Vietnamese",
}

// IsSupported reports whether code is in the language table.
func IsSupported(code string) bool {
	_, ok := languages[code]
	return ok
}

// Name returns the display name of code, or "" when unsupported.
func Name(code string) string {
	return languages[code]
}

// Supported returns the whole table sorted by code.
func Supported() []Language {
	out := make([]Language, 0, len(languages))
	for code, name := range languages {
		out = append(out, Language{Code: code, Name: name})
	}
	slices.SortFunc(out, func(a, b Language) int { return strings.Compare(a.Code, b.Code) })
	return out
}

// Catalog lists installed language packs under Root, one directory per code.
type Catalog struct {
	Root string
}

// Available returns the supported languages that have an entry under Root,
// sorted by code. An unreadable root yields an empty list.
func (c Catalog) Available(ctx context.Context) []Language {
	entries, err := os.ReadDir(c.Root)
	if err != nil {
		tflog.SubsystemWarn(ctx, "i18n", "Cannot list language directory", map[string]any{
			"root":  c.Root,
			"error": err.Error(),
		})
		return []Language{}
	}

	out := []Language{}
	for _, e := range entries {
		if name, ok := languages[e.Name()]; ok {
			out = append(out, Language{Code: e.Name(), Name: name})
		}
	}

	slices.SortFunc(out, func(a, b Language) int { return strings.Compare(a.Code, b.Code) })
	return out
}
