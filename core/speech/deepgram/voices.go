package deepgram

type Voice string

const (
	AuraAsteriaEn Voice = "aura-asteria-en"
	AuraLunaEn    Voice = "aura-luna-en"
	AuraStellaEn  Voice = "aura-stella-en"
	AuraAthenaEn  Voice = "aura-athena-en"
	AuraHeraEn    Voice = "aura-hera-en"
	AuraOrionEn   Voice = "aura-orion-en"
	AuraArcasEn   Voice = "aura-arcas-en"
	AuraPerseusEn Voice = "aura-perseus-en"
	AuraAngusEn   Voice = "aura-angus-en"
	AuraOrpheusEn Voice = "aura-orpheus-en"
	AuraHeliosEn  Voice = "aura-helios-en"
	AuraZeusEn    Voice = "aura-zeus-en"

	defaultVoice = AuraAsteriaEn
)

func GetAvailableVoices() []Voice {
	return []Voice{
		AuraAsteriaEn, AuraLunaEn, AuraStellaEn, AuraAthenaEn,
		AuraHeraEn, AuraOrionEn, AuraArcasEn, AuraPerseusEn,
		AuraAngusEn, AuraOrpheusEn, AuraHeliosEn, AuraZeusEn,
	}
}
