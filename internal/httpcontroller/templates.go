package httpcontroller

import (
	"fmt"
	"html/template"
)

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head><title>HunterLeaf</title></head>
<body>
<h1>HunterLeaf</h1>
<form method="post" action="/search">
  <p><label>Address <input type="text" name="address"></label></p>
  <p>or coordinates:</p>
  <p><label>Latitude <input type="text" name="latitude"></label>
     <label>Longitude <input type="text" name="longitude"></label></p>
  <p><label>Radius (km) <input type="text" name="radius_km" value="10"></label></p>
  <p><label>Group
    <select name="group">
      <option value="">All plants</option>
      {{range .Categories}}<option value="{{.}}">{{.}}</option>{{end}}
    </select>
  </label></p>
  <p><label>Taxonomic filter
    <select name="category">
      <option value="">None</option>
      <option value="angiosperma">Angiospermas</option>
      <option value="gimnosperma">Gimnospermas</option>
      <option value="helecho">Helechos</option>
      <option value="musgo">Musgos</option>
      <option value="alga">Algas</option>
      <option value="hongo">Hongos</option>
      <option value="liquen">Líquenes</option>
    </select>
  </label></p>
  <p><button type="submit">Search</button></p>
</form>
</body>
</html>
`))

var templateFuncs = template.FuncMap{
	"km": func(v *float64) string {
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%.1f", *v)
	},
}

var resultsTemplate = template.Must(template.New("results").Funcs(templateFuncs).Parse(`<!DOCTYPE html>
<html>
<head><title>HunterLeaf results</title></head>
<body>
<h1>Observations near {{printf "%.4f" .Latitude}}, {{printf "%.4f" .Longitude}}</h1>
<p>{{.Page.TotalCount}} observations, page {{.Page.PageNumber}} of {{.Page.TotalPages}}</p>
<ul>
{{range .Page.Observations}}
  <li>
    <img src="{{.ImageURL}}" alt="{{.Genus}}" width="100">
    <strong>{{.ScientificName}}</strong> ({{.Source}})
    {{if .ObservedOn}}observed {{.ObservedOn}}{{end}}
    {{if .DistanceKm}}at {{km .DistanceKm}} km{{end}}
    {{if .WikipediaSummary}}<p>{{.WikipediaSummary}}</p>{{end}}
  </li>
{{end}}
</ul>
<p><a href="/">New search</a></p>
</body>
</html>
`))
