package web

// Route is one top-level destination of the bottom navigation. Screens
// that are not in the table (batch detail, add batch, users) are reached by
// links and return with a back link.
type Route struct {
	Name  string
	Path  string
	Label string
	Icon  string
}

// Navigation route names.
const (
	RouteActive      = "active"
	RouteIngredients = "ingredients"
	RouteVessels     = "vessels"
	RouteSettings    = "settings"
)

// Routes is the bottom navigation, in display order.
var Routes = []Route{
	{Name: RouteActive, Path: "/", Label: "Active", Icon: "🫙"},
	{Name: RouteIngredients, Path: "/ingredients", Label: "Ingredients", Icon: "🌿"},
	{Name: RouteVessels, Path: "/vessels", Label: "Vessels", Icon: "🏺"},
	{Name: RouteSettings, Path: "/settings", Label: "Settings", Icon: "⚙"},
}

// RoutePath returns the path of a named route, or "/" for unknown names.
func RoutePath(name string) string {
	for _, r := range Routes {
		if r.Name == name {
			return r.Path
		}
	}
	return "/"
}
