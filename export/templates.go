package export

import (
	"sort"

	"github.com/teranos/scrapstudio/am"
	"github.com/teranos/scrapstudio/errors"
)

// RawJSONKey is the results column holding the engine's original record
const RawJSONKey = "raw_json"

// templates are the built-in column layouts. Sources are aliases: French
// result fields, then the engine's English field names.
var templates = map[string][]Column{
	"fr": {
		{Name: "id"},
		{Name: "nom_organisation", Sources: []string{"nom_organisation", "name"}},
		{Name: "statut_juridique"},
		{Name: "categorie_principale", Sources: []string{"categorie_principale", "category"}},
		{Name: "sous_categories"},
		{Name: "langues", Sources: []string{"langues", "language"}},
		{Name: "public_cible"},
		{Name: "zone_couverte", Sources: []string{"zone_couverte", "country"}},
		{Name: "adresse_postale", Sources: []string{"adresse_postale", "address"}},
		{Name: "telephone", Sources: []string{"telephone", "phone"}},
		{Name: "email"},
		{Name: "site_web", Sources: []string{"site_web", "website"}},
		{Name: "facebook"},
		{Name: "instagram"},
		{Name: "linkedin"},
		{Name: "line_id_ou_lien", Sources: []string{"line_id_ou_lien", "line_id"}},
		{Name: "whatsapp"},
		{Name: "telegram"},
		{Name: "wechat"},
		{Name: "autre_contact", Sources: []string{"autre_contact", "other_contact"}},
		{Name: "personne_contact", Sources: []string{"personne_contact", "contact_name"}},
		{Name: "horaires"},
		{Name: "cout_adhesion"},
		{Name: "conditions_acces"},
		{Name: "services_offerts"},
		{Name: "description"},
		{Name: "annee_creation"},
		{Name: "numero_enregistrement"},
		{Name: "taille_membres"},
		{Name: "evenements_reguliers"},
		{Name: "partenaires_affiliations"},
		{Name: "organisation_parente"},
		{Name: "chapitres_locaux"},
		{Name: "mots_cles"},
		{Name: "source_url_principale", Sources: []string{"source_url_principale", "source_url"}},
		{Name: "sources_secondaires"},
		{Name: "date_verification"},
		{Name: "fiabilite"},
		{Name: "commentaire_notes"},
	},
	"en": {
		{Name: "name", Sources: []string{"name", "nom_organisation"}},
		{Name: "category", Sources: []string{"category", "categorie_principale"}},
		{Name: "short_description", Sources: []string{"short_description", "description_courte"}},
		{Name: "languages", Sources: []string{"language", "langues"}},
		{Name: "city", Sources: []string{"city", "ville"}},
		{Name: "province", Sources: []string{"province", "departement", "state"}},
		{Name: "coverage_area", Sources: []string{"zone_couverte", "coverage_area", "country"}},
		{Name: "address", Sources: []string{"address", "adresse_postale"}},
		{Name: "latitude"},
		{Name: "longitude"},
		{Name: "email"},
		{Name: "phone", Sources: []string{"phone", "telephone"}},
		{Name: "whatsapp"},
		{Name: "line_id"},
		{Name: "website", Sources: []string{"website", "site_web"}},
		{Name: "facebook_url", Sources: []string{"facebook", "facebook_url"}},
		{Name: "instagram_url", Sources: []string{"instagram", "instagram_url"}},
		{Name: "linkedin_url", Sources: []string{"linkedin", "linkedin_url"}},
		{Name: "line_link", Sources: []string{"line_link", "line_url"}},
		{Name: "whatsapp_link"},
		{Name: "telegram_url", Sources: []string{"telegram", "telegram_url"}},
		{Name: "wechat"},
		{Name: "other_contact"},
		{Name: "contact_name", Sources: []string{"contact_name", "personne_contact"}},
		{Name: "opening_hours", Sources: []string{"horaires", "opening_hours"}},
		{Name: "membership_fee", Sources: []string{"cout_adhesion", "membership_fee"}},
		{Name: "access_conditions", Sources: []string{"conditions_acces", "access_conditions"}},
		{Name: "services_offered", Sources: []string{"services_offerts", "services_offered"}},
		{Name: "description"},
		{Name: "founded_year", Sources: []string{"annee_creation", "founded_year"}},
		{Name: "registration_number", Sources: []string{"numero_enregistrement", "registration_number"}},
		{Name: "members_size", Sources: []string{"taille_membres", "members_size"}},
		{Name: "regular_events", Sources: []string{"evenements_reguliers", "regular_events"}},
		{Name: "affiliations", Sources: []string{"partenaires_affiliations", "affiliations"}},
		{Name: "parent_org", Sources: []string{"organisation_parente", "parent_org"}},
		{Name: "local_chapters", Sources: []string{"chapitres_locaux", "local_chapters"}},
		{Name: "keywords", Sources: []string{"mots_cles", "keywords"}},
		{Name: "source_urls", Sources: []string{"source_urls", "source_url", "source_url_principale"}},
		{Name: "last_verified_date", Sources: []string{"date_verification", "last_verified_date"}},
		{Name: "verification_method"},
		{Name: "status"},
		{Name: "risk_flags"},
		{Name: "quality_score"},
		{Name: "firm_name"},
		{Name: "lawyer_name"},
		{Name: "practice_areas"},
		{Name: "bar_or_license_no"},
		{Name: "years_experience"},
		{Name: "consultation_modes"},
		{Name: "consultation_languages"},
		{Name: "fee_structure"},
		{Name: "emergency_hotline"},
	},
}

// TemplateNames returns the built-in template names, sorted
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Template returns the schema of a built-in template
func Template(name string) (*Schema, error) {
	cols, ok := templates[name]
	if !ok {
		return nil, errors.WithHintf(
			errors.Newf("unknown export template %q", name),
			"available templates: %v", TemplateNames())
	}
	return NewSchema(cols...)
}

// NewFromConfig builds the process-wide normalizer. An explicit schema wins
// over the template; the template argument, when non-empty, overrides the
// configured one.
func NewFromConfig(cfg am.ExportConfig, template string) (*Normalizer, error) {
	var schema *Schema
	var err error

	switch {
	case template != "":
		schema, err = Template(template)
	case len(cfg.Schema) > 0:
		schema, err = NewSchema(Columns(cfg.Schema...)...)
	default:
		schema, err = Template(cfg.Template)
	}
	if err != nil {
		return nil, err
	}

	return NewNormalizer(schema,
		WithDelimiter(cfg.DelimiterRune()),
		WithRawFallback(RawJSONKey))
}
