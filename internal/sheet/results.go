package sheet

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/route-geocoder/internal/model"
)

// ResultsSheet is the worksheet name WriteResults creates.
const ResultsSheet = "Resultados"

var resultHeader = []string{
	"Endereço Original", "Endereço Corrigido", "Bairro", "Cidade", "Estado",
	"Latitude", "Longitude", "Status", "Observação", "Busca Utilizada", "Local Encontrado", "Aprendido",
}

// WriteResults saves results as an XLSX workbook at path.
func WriteResults(path string, results []model.AddressResult) error {
	f := xlsx.NewFile()
	sh, err := f.AddSheet(ResultsSheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	addRow(sh, resultHeader)
	for _, r := range results {
		addRow(sh, []string{
			r.OriginalAddress, r.CorrectedAddress, r.Bairro, r.Cidade, r.Estado,
			r.Latitude, r.Longitude, string(r.Status), r.Note, r.SearchUsed, r.DisplayName,
			strconv.FormatBool(r.Learned),
		})
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "xlsx: save results")
	}
	return nil
}

func addRow(sh *xlsx.Sheet, values []string) {
	row := sh.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
