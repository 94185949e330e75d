package digiself

var (
	ExtractJSON         = extractJSON
	BuildSystemPrompt   = buildSystemPrompt
	SynthesizeVideoLink = synthesizeVideoLink
)
