package http

import (
	"embed"
	"io/fs"
	nethttp "net/http"

	"github.com/gofiber/template/html/v2"
)

//go:embed views
var viewsFS embed.FS

// ViewsLayout es el layout común de las páginas
const ViewsLayout = "layouts/main"

// NewViews crea el motor de plantillas con las vistas embebidas
func NewViews() *html.Engine {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		// el directorio está embebido: solo falla si se renombra
		panic(err)
	}
	return html.NewFileSystem(nethttp.FS(sub), ".html")
}
