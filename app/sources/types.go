package sources

// Source is one configured RSS/Atom endpoint plus its display metadata.
// The list is loaded once at startup and treated as read-only afterwards;
// blog rows in the database are re-synced from it on every refresh cycle.
type Source struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Category    string `yaml:"category"`
	SiteURL     string `yaml:"site_url"`
	Description string `yaml:"description"`
}
