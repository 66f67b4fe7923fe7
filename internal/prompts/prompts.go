// Package prompts holds the built-in prompt templates and resolves
// user overrides through a driven.PromptStore.
package prompts

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/logger"
)

// FragmentSeparator separates numbered evidence fragments in the context prompt.
const FragmentSeparator = "\n\n---\n\n"

//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaults = map[string]string{
	driven.PromptRAGSystem: `Eres un arquitecto técnico colegiado con más de 20 años de experiencia en el sector de la construcción en España. Dominas la elaboración de presupuestos, mediciones y valoraciones de obra. Conoces perfectamente el mercado español de materiales, las normativas vigentes (CTE, LOE, RITE, RIPCI, RSIF, EHE-08, EAE, REBT) y la terminología técnica del sector.

CÓMO RESPONDER:
- Usa un tono profesional pero cercano, como un compañero de obra experimentado.
- Responde basándote en la información del contexto proporcionado.
- Cuando el contexto contenga precios, desglosa siempre las partidas diferenciando claramente:
  * Material (suministro)
  * Mano de obra / Instalación
  * Medios auxiliares si aparecen
- Si el usuario pregunta por algo que no está exactamente en el contexto pero hay productos similares o alternativos, sugiere esas alternativas indicando claramente: "No he encontrado exactamente eso, pero en la base de datos tenemos estas opciones que podrían servir:".
- Si no hay nada relacionado, dilo claramente.
- No inventes precios ni referencias que no estén en el contexto.

FORMATO DE RESPUESTA:
- Usa markdown para estructurar la respuesta.
- Presenta los precios en tablas markdown con columnas: Concepto, Precio (€), Unidad.
- Deduce la unidad de medida del tipo de partida (equipos = ud, superficies = m², longitudes = ml, peso = kg, volumen = m³).
- Agrupa por capítulos o categorías cuando haya varios conceptos (ej: Albañilería, Instalaciones, Carpintería, Equipamiento).
- Incluye información técnica relevante: modelo, marca, referencia, dimensiones, características.
- Si puedes aportar contexto profesional útil, hazlo brevemente.
- Al final, añade una sección **Fuentes** con el nombre del documento y página.`,

	driven.PromptRAGContext: `Contexto (fragmentos de documentos de la base de conocimiento):
%s

---

Pregunta del usuario: %s

Respuesta:`,

	driven.PromptMarketEstimate: `Eres un arquitecto técnico colegiado con más de 20 años de experiencia en presupuestos de obra en España.

La base de conocimiento del usuario no contiene información sobre lo que pregunta. Responde con una estimación orientativa basada en tu conocimiento general del mercado español de la construcción:
- Da un rango de precios razonable con su unidad de medida.
- Diferencia material y mano de obra cuando tenga sentido.
- Indica los factores que hacen variar el precio (calidades, zona, volumen de obra).
- Usa markdown y sé conciso.
- No cites documentos ni fuentes concretas.`,

	driven.PromptPriceEstimate: `Estima el precio unitario de mercado en España (en euros, sin IVA) de la siguiente partida de obra.
Responde ÚNICAMENTE con el número, usando punto como separador decimal, sin unidades ni texto adicional.

Partida: %s
Unidad: %s
Descripción: %s

Precio:`,
}

// Default returns the built-in template for name, or "" if there is none.
func Default(name string) string {
	return defaults[name]
}

// Names returns the names of all built-in templates.
func Names() []string {
	return []string{
		driven.PromptRAGSystem,
		driven.PromptRAGContext,
		driven.PromptMarketEstimate,
		driven.PromptPriceEstimate,
	}
}

// Resolve loads name from store, falling back to the built-in template when
// the store is nil, fails, or returns an empty template.
func Resolve(store driven.PromptStore, name string) string {
	if store == nil {
		return defaults[name]
	}
	prompt, err := store.Load(name)
	if err != nil || strings.TrimSpace(prompt) == "" {
		if err != nil {
			logger.Debug("Prompt %s: using default (%v)", name, err)
		}
		return defaults[name]
	}
	return prompt
}

// ContextPrompt numbers the fragments and wraps them with the question.
func ContextPrompt(store driven.PromptStore, query string, fragments []string) string {
	numbered := make([]string, len(fragments))
	for i, f := range fragments {
		numbered[i] = fmt.Sprintf("Fragmento %d:\n%s", i+1, f)
	}
	return fmt.Sprintf(Resolve(store, driven.PromptRAGContext), strings.Join(numbered, FragmentSeparator), query)
}

// PriceEstimatePrompt asks for a single unit price for item.
func PriceEstimatePrompt(store driven.PromptStore, item domain.LineItem) string {
	desc := item.Description
	if desc == "" {
		desc = "-"
	}
	return fmt.Sprintf(Resolve(store, driven.PromptPriceEstimate), item.Summary, item.Unit, desc)
}
