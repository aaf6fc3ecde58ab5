package view

import (
	"html/template"
	"io"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Settings</title>
<style>
.layout { display: flex; flex-direction: column; gap: 16px; max-width: 720px; margin: 24px auto; font-family: sans-serif; }
.form-item { display: flex; flex-direction: column; gap: 6px; }
.form-item h3 { margin: 0; font-size: 14px; text-transform: uppercase; color: #6c7086; }
.form-item .output { font-family: monospace; word-break: break-all; }
.form-item .error { padding: 6px 10px; border-radius: 4px; background: #f38ba8; color: #1e1e2e; }
.address-form { display: flex; gap: 8px; }
.address-form input { flex: 1; font-family: monospace; }
.control { display: flex; gap: 8px; align-items: center; }
.control input[type=url] { flex: 1; }
.misc { display: flex; gap: 16px; }
.misc .form-item { flex: 1; }
.suffix { font-size: 12px; font-weight: bold; }
.summary { font-family: monospace; font-size: 12px; color: #45475a; }
</style>
</head>
<body>
<div class="layout">
<h2>Settings</h2>
{{define "item"}}<h3>{{.Title}}</h3>
{{- if .HasOutput}}
{{- if .OutputIsLink}}<a class="output" href="{{.Output}}">{{.Output}}</a>{{else}}<div class="output">{{.Output}}</div>{{end}}
{{- end}}
{{- if .HasError}}<div class="error">{{.Error}}</div>{{end}}{{end}}
<section class="form-item">
{{template "item" .ABI}}
<form class="control" method="post" action="/form/abi/load">
<input type="url" name="abiUrl" placeholder="ABI URL" value="{{.State.ABI.SourceURL}}" required>
<button type="submit"{{if .State.Loading}} disabled{{end}}>Load</button>
</form>
<form class="control" method="post" action="/form/abi/file" enctype="multipart/form-data">
<input type="file" name="file" required>
<button type="submit">Select File</button>
</form>
{{- with .Summary}}
<div class="summary">{{len .Methods}} methods, {{len .Events}} events, {{len .Errors}} errors</div>
{{- end}}
</section>
<section class="form-item">
{{template "item" .Address}}
<form class="address-form" method="post" action="/form/address">
<input type="text" name="address" placeholder="0x..." value="{{.State.Address.EditingValue}}" pattern="0x[0-9a-fA-F]{40}" required>
<button type="submit"{{if not .State.CanSetAddress}} disabled{{end}}>Set</button>
</form>
</section>
<form class="misc" method="post" action="/form/settings">
<section class="form-item">
{{template "item" .Unit}}
<select name="unit">
{{- range .Units}}
<option value="{{.Value}}"{{if eq .Value $.Settings.Unit}} selected{{end}}>{{.Label}}</option>
{{- end}}
</select>
</section>
<section class="form-item">
{{template "item" .Gas}}
<div class="control"><input type="text" name="gasLimit" value="{{.Settings.GasLimit}}"><span class="suffix">{{.GasSuffix}}</span></div>
</section>
<button type="submit">Save</button>
</form>
</div>
</body>
</html>
`))

// RenderHTML 渲染完整设置页面
func RenderHTML(w io.Writer, page Page) error {
	return pageTemplate.Execute(w, page)
}
