package stage

import (
	"fmt"
	"strings"

	"github.com/PollyDrive/estate-sub000/internal/store"
)

// FormatStatsMessage renders the /stats reply.
func FormatStatsMessage(st store.PipelineStats, reactions []store.ReactionTally) string {
	var b strings.Builder
	b.WriteString("📊 *Статистика пайплайна*\n")
	fmt.Fprintf(&b, "\nВсего объявлений: %d", st.ListingsTotal)
	fmt.Fprintf(&b, "\n🗄 В архиве: %d\n", st.NonRelevant)
	fmt.Fprintf(&b, "\n⏳ Ранние стадии: %d", st.Early)
	fmt.Fprintf(&b, "\n🚫 Не прошли фильтры: %d", st.FilterFailed)
	fmt.Fprintf(&b, "\n🤖 Отклонены LLM: %d", st.LLMFailed)
	fmt.Fprintf(&b, "\n🚪 Только комнаты: %d", st.RoomOnly)
	fmt.Fprintf(&b, "\n📋 Ожидают отправки: %d", st.Waiting)
	fmt.Fprintf(&b, "\n🔁 Дубликаты: %d", st.Duplicates)
	fmt.Fprintf(&b, "\n✅ Отправлено: %d", st.Sent)

	if len(reactions) > 0 {
		b.WriteString("\n\n*Реакции:*")
		for _, r := range reactions {
			fmt.Fprintf(&b, "\n%s %d объявлений (%d реакций)", r.Emoji, r.Listings, r.Reactions)
		}
	}
	return b.String()
}
