package prompt

// Feature ids known to the composer.
const (
	FeatureAdminPanel    = "admin_panel"
	FeaturePWA           = "pwa"
	FeatureSecurityRules = "security_rules"
	FeatureMultiFile     = "multi_file"
	FeatureTailwind      = "tailwind"
)

type featureRule struct {
	ID       string
	Enabled  string
	Disabled string
}

// catalog is rendered in this order.
var catalog = []featureRule{
	{
		ID:       FeatureAdminPanel,
		Enabled:  "Include an admin panel page (admin.html) that lets the site owner manage the site's content.",
		Disabled: "Do not create an admin panel or any admin-only pages.",
	},
	{
		ID:       FeaturePWA,
		Enabled:  "Make the site an installable progressive web app: provide manifest.webmanifest and a service worker (sw.js) registered from index.html.",
		Disabled: "Do not add a web app manifest or a service worker.",
	},
	{
		ID:       FeatureSecurityRules,
		Enabled:  "Provide a security rules file (database.rules.json) that denies access by default and grants only what the site needs.",
		Disabled: "Do not create security rules files.",
	},
	{
		ID:       FeatureMultiFile,
		Enabled:  "Keep HTML, CSS and JavaScript in separate files (index.html, style.css, script.js) and link them.",
		Disabled: "Keep everything in a single index.html with inline <style> and <script> blocks.",
	},
	{
		ID:       FeatureTailwind,
		Enabled:  "Style the site with the Tailwind CSS framework loaded from its CDN.",
		Disabled: "Do not use Tailwind or any other CSS framework; write plain CSS.",
	},
}

// Known reports whether id is a catalog feature.
func Known(id string) bool {
	for _, f := range catalog {
		if f.ID == id {
			return true
		}
	}
	return false
}

// Catalog lists the feature ids in manifest order.
func Catalog() []string {
	out := make([]string, 0, len(catalog))
	for _, f := range catalog {
		out = append(out, f.ID)
	}
	return out
}
