package reconcile

import "fmt"

// Decision tags appended to a row's note.
const (
	NoteLearnedUsed        = "coordenadas-aprendidas-usadas"
	NoteQuadraLote         = "quadra-lote-manual-review"
	NoteNotFound           = "endereco-nao-encontrado"
	NoteNoCompatibleResult = "nenhum-resultado-compativel"
	NoteDistanceConflict   = "coordenadas-geocodificadas-diferem-muito-da-planilha-revisao-manual"
	NoteOperatorConfirmed  = "coordenadas-da-planilha-confirmadas-por-geocodificacao"
	NoteOperatorFallback   = "coordenadas-da-planilha-usadas-geocodificacao-falhou"
	NoteNoCoordinates      = "nao-foi-possivel-obter-coordenadas"
	NoteInternalError      = "erro-interno"
	NoteInvalidInput       = "entrada-invalida"
	noteGeocodedBy         = "geocodificado-%s"
	noteHighBoth           = "confianca-alta-forward:%d%%-reverse:%d%%"
	noteOperatorValidated  = "coordenadas-originais-validadas:%d%%"
	noteGeocodeCorrected   = "geocodificacao-corrigida:%d%%"
	noteMediumReview       = "confianca-media-revisao-sugerida:%d%%"
	noteGeocoded           = "geocodificado:%d%%"
	noteLowReviewRequired  = "confianca-baixa-revisao-necessaria:%d%%"
	noteLowOnlyEvidence    = "confianca-baixa:%d%%"
)

func tag(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
