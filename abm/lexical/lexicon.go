package lexical

// lexicon holds the word lists and patterns for one language. Patterns use \b
// for word boundaries; they are compiled with Unicode-aware boundaries.
type lexicon struct {
	highEmotion     []string
	mediumEmotion   []string
	confrontational []string
	consensus       []string
	connectors      []string
	hedges          []string
	acknowledgement []string
	absolutes       []string
	evidence        []string
	challenge       []string
	imperative      []string
	you             string
}

var english = lexicon{
	highEmotion: []string{
		"outrageous", "insane", "ridiculous", "madness", "disaster",
		"catastrophe", "terrible", "amazing", "incredible", "absurd",
		"furious", "disgusted", "horrified", "delighted", "thrilled",
		"robbery", "scam", "fraud", "crisis", "emergency", "collapse",
	},
	mediumEmotion: []string{
		"worried", "concerned", "frustrated", "annoyed", "pleased",
		"hopeful", "disappointed", "surprised", "confused", "skeptical",
		"expensive", "unfair", "corrupt", "broken", "failing",
	},
	confrontational: []string{
		`\bwake up\b`,
		`\byou really\b`,
		`\bhow can you\b`,
		`\bwhat a joke\b`,
		`\bso-called\b`,
		`\bthe "experts"`,
		`\bobviously\b`,
		`\bwrong\b`,
		`\blie[sd]?\b`,
		`\bfoolish\b`,
		`\bnaive\b`,
		`\bignorant\b`,
		`\bblind\b`,
		`\bsheep\b`,
		`\bbrainwashed\b`,
	},
	consensus: []string{
		`\bresearch shows\b`,
		`\bexperts agree\b`,
		`\bthe data\b`,
		`\bevidence\b`,
		`\bstudies\b`,
		`\bwhile\b.*\bbut\b`,
		`\bit's not simple\b`,
		`\btrade-?offs?\b`,
		`\bbalanced?\b`,
		`\bpragmatic\b`,
		`\breasonable\b`,
		`\backnowledge\b`,
		`\bwe need to consider\b`,
	},
	connectors: []string{
		`\bbecause\b`,
		`\btherefore\b`,
		`\bhowever\b`,
		`\balthough\b`,
		`\bsince\b`,
		`\bthus\b`,
		`\bif\b.*\bthen\b`,
		`\bfirst\b.*\bsecond\b`,
		`\bfor example\b`,
		`\bin other words\b`,
	},
	hedges:          []string{"perhaps", "maybe", "might", "could", "possibly", "seems", "generally"},
	acknowledgement: []string{"fair point", "valid concern", "i understand", "legitimate"},
	absolutes:       []string{"always", "never", "everyone", "no one", "all ", "none "},
	evidence:        []string{"data", "study", "research", "percent", "%", "billion"},
	challenge:       []string{"really", "seriously", "honestly"},
	imperative:      []string{"wake", "stop", "look", "think", "open"},
	you:             "you",
}

var norwegian = lexicon{
	highEmotion: []string{
		"skandaløst", "vanvittig", "latterlig", "galskap", "katastrofe",
		"forferdelig", "utrolig", "absurd", "rasende", "forferdet",
		"ran", "svindel", "bedrageri", "krise", "nødsituasjon", "kollaps",
		"sjokkerende", "hårreisende", "grotesk", "opprørende", "avskyelig",
	},
	mediumEmotion: []string{
		"bekymret", "urolig", "frustrert", "irritert", "fornøyd",
		"håpefull", "skuffet", "overrasket", "forvirret", "skeptisk",
		"dyrt", "urettferdig", "korrupt", "ødelagt", "sviktende",
		"trist", "lei", "oppgitt", "misfornøyd",
	},
	confrontational: []string{
		`\bvåkn opp\b`,
		`\bdu virkelig\b`,
		`\bhvordan kan du\b`,
		`\bfor en vits\b`,
		`\bsåkalte?\b`,
		`"ekspertene"`,
		`\båpenbart\b`,
		`\bfeil\b`,
		`\bløgn(er)?\b`,
		`\btåpelig\b`,
		`\bnaiv\b`,
		`\buvitende\b`,
		`\bblind\b`,
		`\bsauer\b`,
		`\bhjernevasket\b`,
		`\bidiotisk\b`,
		`\bpathetic\b`,
		`\bhvem tror du\b`,
		`\bforstår du ikke\b`,
		`\bskjønner du ikke\b`,
	},
	consensus: []string{
		`\bforskning viser\b`,
		`\beksperter er enige\b`,
		`\bdataene\b`,
		`\bevidens\b`,
		`\bstudier\b`,
		`\bselv om\b.*\bmen\b`,
		`\bdet er ikke enkelt\b`,
		`\bavveininger?\b`,
		`\bbalansert\b`,
		`\bpragmatisk\b`,
		`\brimelig\b`,
		`\banerkjenne\b`,
		`\bvi må vurdere\b`,
		`\bfaktisk\b`,
		`\bifølge\b`,
	},
	connectors: []string{
		`\bfordi\b`,
		`\bderfor\b`,
		`\bimidlertid\b`,
		`\bselv om\b`,
		`\bsiden\b`,
		`\bsåledes\b`,
		`\bhvis\b.*\bda\b`,
		`\bførst\b.*\bderetter\b`,
		`\bfor eksempel\b`,
		`\bmed andre ord\b`,
		`\blikevel\b`,
		`\bpå grunn av\b`,
		`\bfølgelig\b`,
	},
	hedges:          []string{"kanskje", "muligens", "kan", "kunne", "virker", "generelt", "antagelig", "trolig"},
	acknowledgement: []string{"godt poeng", "gyldig bekymring", "jeg forstår", "legitimt", "du har rett i"},
	absolutes:       []string{"alltid", "aldri", "alle ", "ingen ", "ingenting", "absolutt"},
	evidence:        []string{"data", "studie", "forskning", "prosent", "%", "milliard", "statistikk"},
	challenge:       []string{"virkelig", "seriøst", "ærlig talt"},
	imperative:      []string{"våkn", "stopp", "se", "tenk", "åpne"},
	you:             "du",
}
