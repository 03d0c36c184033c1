package card

// DefaultImageRef is the shared profile image every project falls back to.
const DefaultImageRef = "/images/profile.svg"

// Project is a single portfolio entry.
type Project struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageRef    string `json:"image_ref,omitempty"`
}

// Image returns the project's image, or the shared profile image when
// the project has none of its own.
func (p Project) Image() string {
	if p.ImageRef == "" {
		return DefaultImageRef
	}
	return p.ImageRef
}

var projects = [...]Project{
	{
		Title:       "ImageViewMVVMApp",
		Description: "Allows the user to search the internet for images based on a search term.",
	},
	{
		Title:       "PerfectFit",
		Description: "A fitness app developed as part of my third year dissertation project.",
	},
	{
		Title:       "JavaGPSDemo",
		Description: "A demo of accessing and using GPS data using Java.",
	},
}

// Projects returns the portfolio in display order. Each call returns a
// fresh slice, so callers cannot alter the catalog.
func Projects() []Project {
	out := make([]Project, len(projects))
	copy(out, projects[:])
	return out
}
