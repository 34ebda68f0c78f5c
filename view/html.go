package view

import (
	"html/template"
	"io"
)

const rowTemplate = `{{define "row"}}<div class="cart-item">
  <img src="{{.Img}}" alt="{{.Title}}">
  <div>
    <h4>{{.Title}}</h4>
    <div class="price">{{.Price}}</div>
    <div class="qty">
      <button data-act="dec" data-id="{{.ID}}">-</button>
      <span>{{.Qty}}</span>
      <button data-act="inc" data-id="{{.ID}}">+</button>
    </div>
    <button class="remove-btn" data-act="remove" data-id="{{.ID}}">Remove</button>
  </div>
  <div><strong>{{.LineTotal}}</strong></div>
</div>
{{end}}`

const rowsTemplate = `{{define "rows"}}{{if .Empty}}<p class="empty-msg">` + EmptyMessage + `</p>{{else}}{{range .Rows}}{{template "row" .}}{{end}}{{end}}{{end}}`

const panelTemplate = `{{define "panel"}}<div id="cart-backdrop" class="cart-backdrop{{if .Open}} show{{end}}"></div>
<aside id="cart-panel" class="cart-panel{{if .Open}} open{{end}}" aria-hidden="{{if .Open}}false{{else}}true{{end}}" data-count="{{.Count}}">
<div class="cart-header"><h3>Your cart</h3><button id="cart-close" type="button" aria-label="Close cart">&times;</button></div>
<div id="cart-items">{{template "rows" .}}</div>
<div class="cart-footer">Total: <span id="cart-total">{{.Summary.Total}}</span></div>
</aside>
{{end}}`

const pageTemplate = `{{define "page"}}<section class="cart-page" data-count="{{.Count}}">
<div id="cartpage-items">{{template "rows" .}}</div>
<dl class="cart-summary">
  <dt>Subtotal</dt><dd id="cartpage-subtotal">{{.Summary.Subtotal}}</dd>
  <dt>Tax (5%)</dt><dd id="cartpage-tax">{{.Summary.Tax}}</dd>
  <dt>Shipping</dt><dd id="cartpage-ship">{{.Summary.Shipping}}</dd>
  <dt>Total</dt><dd id="cartpage-total">{{.Summary.Total}}</dd>
</dl>
</section>
{{end}}`

var templates = template.Must(template.New("cart").Parse(rowTemplate + rowsTemplate + panelTemplate + pageTemplate))

// WriteHTML renders the model with the template of its target.
func (m Model) WriteHTML(w io.Writer) error {
	name := string(Panel)
	if m.Target == Page {
		name = string(Page)
	}
	return templates.ExecuteTemplate(w, name, m)
}
