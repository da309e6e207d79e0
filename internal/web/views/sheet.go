package views

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
)

// SheetPath is the staff page of a sheet.
func SheetPath(key string) string {
	return "/sheets/" + url.PathEscape(key)
}

// RecordPath is where the edit form of one record posts.
func RecordPath(key, id string) string {
	return SheetPath(key) + "/records/" + url.PathEscape(id)
}

// FileLink is a stored attachment.
type FileLink struct {
	URL  string
	Name string
}

// ExamRow is one exam on the staff page.
type ExamRow struct {
	ID          string
	Patient     string
	Date        string // DD/MM/YYYY
	DateInput   string // YYYY-MM-DD, the value a date input expects
	WithdrawnBy string
	Notes       string
	Files       []FileLink
	// FilesJSON round-trips the current attachments through the edit form.
	FilesJSON   string
}

// RecoletaRow is one recoleta on the staff page.
type RecoletaRow struct {
	ID       string
	Patient  string
	UBS      string
	Notified bool
	Notes    string
}

// SheetPageData feeds SheetPage. Exactly one of Exams and Recoletas is
// used, depending on Sheet.Kind.
type SheetPageData struct {
	Sheet       SheetLink
	Query       string
	WithdrawnBy string
	Options     []string // withdrawn-by suggestions
	Notice      string
	Exams       []ExamRow
	Recoletas   []RecoletaRow
}

// SheetPage lists the records of one sheet with a form per row.
func SheetPage(d SheetPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		esc := templ.EscapeString[string]
		self := esc(SheetPath(d.Sheet.Key))

		fmt.Fprintf(&b, `<nav><a href="/">Planilhas</a></nav>`+"\n"+`<h1>%s</h1>`+"\n", esc(d.Sheet.Label))
		if d.Notice != "" {
			fmt.Fprintf(&b, `<p class="notice" role="status">%s</p>`+"\n", esc(d.Notice))
		}

		fmt.Fprintf(&b, `<form method="get" action="%s">`+"\n", self)
		fmt.Fprintf(&b, `<input name="q" placeholder="Paciente" value="%s">`+"\n", esc(d.Query))
		if d.Sheet.Kind == "exam" {
			fmt.Fprintf(&b, `<input name="withdrawnBy" list="withdrawn-by" placeholder="Retirado por" value="%s">`+"\n", esc(d.WithdrawnBy))
		}
		b.WriteString(`<button type="submit">Buscar</button>` + "\n</form>\n")

		if d.Sheet.Kind == "exam" {
			writeExams(&b, d)
		} else {
			writeRecoletas(&b, d)
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeExams(b *strings.Builder, d SheetPageData) {
	esc := templ.EscapeString[string]
	key := d.Sheet.Key

	fmt.Fprintf(b, `<p><a href="%s">Relatório CSV</a></p>`+"\n", esc("/api/report/"+url.PathEscape(key)))
	b.WriteString(`<datalist id="withdrawn-by">`)
	for _, opt := range d.Options {
		fmt.Fprintf(b, `<option value="%s">`, esc(opt))
	}
	b.WriteString("</datalist>\n")

	fmt.Fprintf(b, `<h2>Novo exame</h2>
<form method="post" action="%s" enctype="multipart/form-data" class="new-record">
<input name="patientName" placeholder="Paciente" required>
<input type="date" name="receivedDate">
<input name="withdrawnBy" list="withdrawn-by" placeholder="Retirado por">
<textarea name="observations" placeholder="OBS"></textarea>
<input type="file" name="files" accept="application/pdf,image/*" multiple>
<button type="submit">Adicionar</button>
</form>
`, esc(SheetPath(key)+"/records"))

	if len(d.Exams) == 0 {
		b.WriteString(`<p class="empty">Nenhum exame encontrado.</p>`)
		return
	}
	b.WriteString("<table>\n<thead><tr><th>Paciente</th><th>Data Recebida</th><th>Retirado Por</th><th>OBS</th><th>PDFs</th><th></th></tr></thead>\n<tbody>\n")
	for i, e := range d.Exams {
		if e.ID == "" {
			fmt.Fprintf(b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td></td><td></td></tr>\n",
				esc(e.Patient), esc(e.Date), esc(e.WithdrawnBy), esc(e.Notes))
			continue
		}
		form := fmt.Sprintf("edit-%d", i)
		fmt.Fprintf(b, `<tr id="%s">`, esc(e.ID))
		fmt.Fprintf(b, `<td><input form="%s" name="patientName" value="%s" required></td>`, form, esc(e.Patient))
		fmt.Fprintf(b, `<td><input form="%s" type="date" name="receivedDate" value="%s"></td>`, form, esc(e.DateInput))
		fmt.Fprintf(b, `<td><input form="%s" name="withdrawnBy" list="withdrawn-by" value="%s"></td>`, form, esc(e.WithdrawnBy))
		fmt.Fprintf(b, `<td><textarea form="%s" name="observations">%s</textarea></td>`, form, esc(e.Notes))

		b.WriteString("<td><ul class=\"files\">")
		for _, f := range e.Files {
			fmt.Fprintf(b, `<li><a href="%s" target="_blank" rel="noopener">%s</a> <label><input form="%s" type="checkbox" name="removeAttachment" value="%s"> remover</label></li>`,
				esc(string(templ.URL(f.URL))), esc(f.Name), form, esc(f.URL))
		}
		fmt.Fprintf(b, `</ul><input form="%s" type="file" name="files" accept="application/pdf,image/*" multiple></td>`, form)

		fmt.Fprintf(b, `<td><form id="%s" method="post" action="%s" enctype="multipart/form-data"><input type="hidden" name="attachments" value="%s"><button type="submit">Salvar</button></form>`,
			form, esc(RecordPath(key, e.ID)), esc(e.FilesJSON))
		writeDeleteForm(b, key, e.ID)
		b.WriteString("</td></tr>\n")
	}
	b.WriteString("</tbody>\n</table>\n")
}

func writeRecoletas(b *strings.Builder, d SheetPageData) {
	esc := templ.EscapeString[string]
	key := d.Sheet.Key

	fmt.Fprintf(b, `<h2>Nova recoleta</h2>
<form method="post" action="%s" class="new-record">
<input name="patientName" placeholder="Paciente" required>
<input name="ubs" placeholder="UBS">
<label><input type="checkbox" name="notified"> Avisado</label>
<textarea name="observations" placeholder="OBS"></textarea>
<button type="submit">Adicionar</button>
</form>
`, esc(SheetPath(key)+"/records"))

	if len(d.Recoletas) == 0 {
		b.WriteString(`<p class="empty">Nenhuma recoleta encontrada.</p>`)
		return
	}
	b.WriteString("<table>\n<thead><tr><th>Paciente</th><th>UBS</th><th>Avisado</th><th>OBS</th><th></th></tr></thead>\n<tbody>\n")
	for i, r := range d.Recoletas {
		checked := ""
		if r.Notified {
			checked = " checked"
		}
		if r.ID == "" {
			fmt.Fprintf(b, `<tr><td>%s</td><td>%s</td><td><input type="checkbox" disabled%s></td><td>%s</td><td></td></tr>`+"\n",
				esc(r.Patient), esc(r.UBS), checked, esc(r.Notes))
			continue
		}
		form := fmt.Sprintf("edit-%d", i)
		fmt.Fprintf(b, `<tr id="%s">`, esc(r.ID))
		fmt.Fprintf(b, `<td><input form="%s" name="patientName" value="%s" required></td>`, form, esc(r.Patient))
		fmt.Fprintf(b, `<td><input form="%s" name="ubs" value="%s"></td>`, form, esc(r.UBS))
		fmt.Fprintf(b, `<td><input form="%s" type="checkbox" name="notified"%s></td>`, form, checked)
		fmt.Fprintf(b, `<td><textarea form="%s" name="observations">%s</textarea></td>`, form, esc(r.Notes))
		fmt.Fprintf(b, `<td><form id="%s" method="post" action="%s"><button type="submit">Salvar</button></form>`,
			form, esc(RecordPath(key, r.ID)))
		writeDeleteForm(b, key, r.ID)
		b.WriteString("</td></tr>\n")
	}
	b.WriteString("</tbody>\n</table>\n")
}

func writeDeleteForm(b *strings.Builder, key, id string) {
	fmt.Fprintf(b, `<form method="post" action="%s"><button type="submit">Excluir</button></form>`,
		templ.EscapeString(RecordPath(key, id)+"/delete"))
}
