package lookup

import (
	"client-data-service/models"
	"client-data-service/reconcile"
)

// PrefillFor ищет сохранённую строку для пары (company, clientType) и
// превращает её в значения для префилла формы. Строки приходят в порядке
// entry_date DESC (контракт CurrentClients), поэтому первое совпадение -
// самая свежая версия. nil - префилла нет.
func PrefillFor(rows []models.ClientRecord, company, clientType string) *reconcile.Prefill {
	if company == "" || clientType == "" {
		return nil
	}
	for i := range rows {
		if rows[i].Company == company && rows[i].ClientType == clientType {
			return prefillFromRecord(&rows[i])
		}
	}
	return nil
}

func prefillFromRecord(rec *models.ClientRecord) *reconcile.Prefill {
	p := reconcile.NewPrefill()

	setScalar := func(name string, v *string) {
		if v != nil && *v != "" {
			p.Scalars[name] = *v
		}
	}
	setList := func(name string, v *string) {
		if v != nil {
			p.Sets[name] = reconcile.SplitList(*v)
		}
	}

	setScalar("client_status", rec.ClientStatus)
	setScalar("decision_makers", rec.DecisionMakers)
	setScalar("other_product_notes", rec.OtherProductNotes)
	setScalar("access_type", rec.AccessType)
	setScalar("front_end_details", rec.FrontEndDetails)
	setScalar("etrm", rec.ETRM)
	setScalar("source", rec.Source)
	setScalar("notes", rec.Notes)

	setList("sensitivities", rec.Sensitivities)
	setList("barriers", rec.Barriers)
	setList("front_end", rec.FrontEnd)
	setList("clearers", rec.Clearers)
	setList("brokers", rec.Brokers)

	p.Volumes["eua_volume"] = rec.EUAVolume
	p.Volumes["go_volume"] = rec.GOVolume

	return p
}
