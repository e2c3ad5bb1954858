package issue

// ---------------------------------------------------------------------------
// Domain taxonomy
// ---------------------------------------------------------------------------

// Domains in scoring order. Ties on score keep this order.
var domainOrder = []string{
	"Criminal",
	"Civil",
	"Family",
	"Cyber",
	"Consumer",
	"Labour",
	"Property",
}

// domainKeywords are matched as lower-case substrings, so a keyword also
// matches inside a longer word ("assault" in "assaulted").
var domainKeywords = map[string][]string{
	"Criminal": {
		"assault", "murder", "theft", "robbery", "fraud", "cheating",
		"rape", "kidnapping", "extortion", "bribery", "corruption",
		"violence", "attack", "weapon", "hurt", "injury", "death",
		"ipc", "crpc", "fir", "police", "arrest", "accused", "victim",
	},
	"Civil": {
		"contract", "breach", "damages", "compensation", "suit",
		"plaintiff", "defendant", "injunction", "decree", "appeal",
		"civil court", "cpc", "dispute", "claim", "liability",
	},
	"Family": {
		"divorce", "marriage", "custody", "alimony", "maintenance",
		"adoption", "inheritance", "will", "succession", "dowry",
		"domestic violence", "child", "spouse", "husband", "wife",
		"family court", "matrimonial",
	},
	"Cyber": {
		"cyber", "online", "internet", "hacking", "phishing", "email",
		"website", "data breach", "identity theft", "digital", "computer",
		"it act", "social media", "fraud online", "banking fraud",
		"credit card", "otp", "password", "account",
	},
	"Consumer": {
		"consumer", "defective", "product", "service", "refund",
		"warranty", "guarantee", "seller", "buyer", "purchase",
		"consumer court", "complaint", "deficiency", "quality",
		"consumer protection act",
	},
	"Labour": {
		"employee", "employer", "salary", "wages", "termination",
		"dismissal", "labour", "worker", "industrial", "union",
		"strike", "provident fund", "esi", "gratuity", "bonus",
		"working conditions", "employment",
	},
	"Property": {
		"property", "land", "house", "building", "rent", "lease",
		"tenant", "landlord", "eviction", "possession", "title",
		"ownership", "sale deed", "registration", "encroachment",
		"boundary", "real estate", "immovable property",
	},
}

// domainIssues lists the named issues per domain. A "/" separates
// alternative spellings, any of which identifies the issue.
var domainIssues = map[string][]string{
	"Criminal": {
		"Assault", "Murder", "Theft", "Robbery", "Fraud/Cheating",
		"Rape/Sexual Assault", "Kidnapping", "Extortion", "Bribery",
		"Corruption", "Domestic Violence", "Dowry Harassment",
	},
	"Civil": {
		"Breach of Contract", "Property Dispute", "Defamation",
		"Negligence", "Money Recovery", "Injunction",
	},
	"Family": {
		"Divorce", "Child Custody", "Alimony/Maintenance",
		"Domestic Violence", "Dowry", "Adoption", "Inheritance",
	},
	"Cyber": {
		"Online Fraud", "Hacking", "Phishing", "Identity Theft",
		"Data Breach", "Cyberbullying", "Banking Fraud",
	},
	"Consumer": {
		"Defective Product", "Service Deficiency", "Unfair Trade Practice",
		"Warranty Claim", "Refund Dispute",
	},
	"Labour": {
		"Wrongful Termination", "Wage Dispute", "Working Conditions",
		"Harassment at Workplace", "Non-payment of Dues",
	},
	"Property": {
		"Property Dispute", "Eviction", "Rent Dispute", "Title Dispute",
		"Encroachment", "Possession Dispute",
	},
}

// Domains returns the domain names in scoring order.
func Domains() []string {
	out := make([]string, len(domainOrder))
	copy(out, domainOrder)
	return out
}

// IssuesFor returns the named issues of domain, or nil for an unknown domain.
func IssuesFor(domain string) []string {
	issues, ok := domainIssues[domain]
	if !ok {
		return nil
	}
	out := make([]string, len(issues))
	copy(out, issues)
	return out
}
