package sheets

import "github.com/JonMunkholm/labtrack/internal/sheetstore"

// DemoExamRows is the exam sheet served in demo mode, header included. Some
// rows carry the legacy bare-URL attachment cell.
func DemoExamRows() [][]string {
	rows := [][]string{
		{"EXM001", "João da Silva", "04/09/2024", "Municipal", "Paciente em jejum de 8 horas.", "https://example.com/results/joaosilva.pdf"},
		{"EXM002", "Maria Oliveira", "", "UBS REDENTOR", "Uso de contraste."},
		{"EXM003", "Alice Johnson", "", "RETIRADO"},
		{"EXM004", "Robert Brown", "01/09/2024", "CEAM", "", "https://example.com/results/robertbrown.pdf"},
		{"EXM005", "Emily Davis"},
		{"EXM006", "Michael Wilson", "", "SANTO ANTONIO", "Amostra enviada para análise patológica."},
		{"EXM007", "Sarah Miller", "03/09/2024", "RETIRADO", "", "https://example.com/results/sarahmiller.pdf"},
		{"EXM008", "David Martinez", "", "Municipal"},
		{"EXM009", "Laura Garcia", "", "RETIRADO"},
		{"EXM010", "James Rodriguez", "", "UBS REDENTOR"},
	}
	return append([][]string{sheetstore.ExamColumns}, rows...)
}

// DemoRecoletaRows is the recoleta sheet served in demo mode.
func DemoRecoletaRows() [][]string {
	return [][]string{
		sheetstore.RecoletaColumns,
		{"REC001", "Maria Oliveira", "UBS REDENTOR", sheetstore.NotifiedYes, "Amostra hemolisada."},
		{"REC002", "David Martinez", "Municipal", sheetstore.NotifiedNo},
	}
}
