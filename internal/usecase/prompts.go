package usecase

import "strings"

// Prompt is a system/user pair whose user part carries {{token}} placeholders.
type Prompt struct {
	Name        string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Render fills the user template; unknown tokens are left in place.
func (p Prompt) Render(values map[string]string) (system, user string) {
	return strings.TrimSpace(dedent(p.System)), strings.TrimSpace(fillTokens(dedent(p.User), values))
}

var interestPrompt = Prompt{
	Name: "interest",
	System: `
Tu es un expert en vérification de contacts professionnels.
Tu vérifies si le contact est un indépendant(e) ou prestataire potentiellement en recherche de missions ou de clients.
Si true : réponds uniquement "true".
Si false : réponds "false: " suivi d'une courte explication (1 phrase) du motif de rejet.`,
	User: `
Informations extraites depuis Google sur le contact: {{contact_informations}}

Ce contact pourrait-il être susceptible d'être en recherche de missions ou de clients ?
Réponds : true ou false: [explication si false]`,
	Temperature: 0.5,
	MaxTokens:   100,
}

var personaPrompt = Prompt{
	Name: "persona",
	System: `
Tu es un expert en synthèse et présentation de profils professionnels.
À partir des données fournies, génère un persona professionnel explicite du contact en 3 à 5 phrases singulières.
Le persona doit donner une overview business claire du contact : intérêts professionnels, type de missions recherchées, clients idéaux, ses expertises clés et autres détails utiles.`,
	User: `
Informations extraites brutes depuis Google sur le contact: {{contact_informations}}
Extrait de la page d'accueil du site web du contact: {{web_informations}}
À partir de ces informations, génère un persona explicite et singulier du contact.
Si présent dans les données, intègre : nom, prénom, localisation et entreprise ou société du contact.
Pas de guillemets ni autre texte dans ta réponse. N'invente pas d'informations.
Réponds uniquement avec le persona rédigé en français, rien d'autre.`,
	Temperature: 0.5,
	MaxTokens:   300,
}

var motivationPrompt = Prompt{
	Name: "motivation",
	System: `
Tu es un expert en analyse de profils, objectifs et carrières professionnels.
À partir des données qu'on te fournit sur un contact, tu définis ses motivations et ce qui le motive dans sa carrière professionnelle.
Les motivations du contact et son moteur de décision doivent être exprimées en français, de manière singulière et précise.`,
	User: `
Informations extraites brutes depuis Google sur le contact: {{contact_informations}}
Présentation du persona professionnel du contact: {{persona}}
Définit les motivations du contact et ce qui le motive dans sa carrière professionnelle.
Pas de guillemets ni autre texte dans ta réponse. Pas d'explications, ni informations complémentaires.
Réponds uniquement avec les motivations ou enjeux professionnels du contact en français, en 1 à 3 phrases, rien d'autre.`,
	Temperature: 0.5,
	MaxTokens:   200,
}

var interlocutorQueryPrompt = Prompt{
	Name: "interlocutor_query",
	System: `
Tu es un expert en définition de la query Google adaptée à trouver le client idéal pour un prestataire professionnel.
À partir des données qu'on te fournit sur un prestataire professionnel, tu crées une query de recherche Google pour sélectionner le client idéal.
La query doit être en français, cohérente et parfaitement attractive au vu des enjeux et expertises du prestataire.`,
	User: `
Présentation du persona professionnel du prestataire : {{persona}}
Motivations/Enjeux professionnels du prestataire : {{motivations}}
Pas de guillemets ni autre texte dans ta réponse. Pas d'explication, ou informations complémentaires.
Opte pour une query courte, concise et cohérente qui ne dépasse pas 5 mots maximum.
Réponds uniquement avec la query en français: "{{intitulé du poste}} {{type d'entreprise}} {{localisation -> si précisée sinon vide}}" rien d'autre.
Exemple de réponse : "Responsable marketing Agence Web Paris"`,
	Temperature: 0.5,
	MaxTokens:   30,
}

var interlocutorSelectionPrompt = Prompt{
	Name: "interlocutor_selection",
	System: `
Tu es un expert en sélection d'interlocuteurs/clients idéaux pour un profil de prestataire professionnel spécifique.
À partir de résultats de recherche Google, tu orientes ta sélection vers l'interlocuteur, entreprise et potentielle localisation qui correspond le mieux au prestataire.
Tu devras sélectionner un seul résultat parmi les résultats de recherche Google et extraire les données de l'interlocuteur, de l'entreprise et si possible la localisation.`,
	User: `
Présentation du persona professionnel du prestataire : {{persona}}
Motivations/Enjeux professionnels du prestataire : {{motivations}}
Résultats de recherche Google : {{search_results}}
Privilégie à tout prix un résultat qui comporte au minimum nom, prénom de l'interlocuteur et intitulé du poste et idéalement localisation.
Réponds uniquement avec un objet JSON valide avec les clés exactes: interlocutor, company, source_url, localisation (si présent).
Pas de texte avant ou après le JSON. Pas de markdown.
Exemple de réponse JSON :
{
    "interlocutor": "John Doe",
    "company": "Acme Inc.",
    "source_url": "https://www.acmeinc.com",
    "localisation": "Paris"
}`,
	Temperature: 0.3,
	MaxTokens:   200,
}

var copywritePrompt = Prompt{
	Name: "copywrite",
	System: `
Tu es un expert en rédaction d'emails professionnels de prospection.
Tu personnalises un template d'email en fonction du persona du contact et des données de l'expéditeur.
Réponds uniquement en JSON valide avec les clés exactes: object, content, cta, footer.
Pas de texte avant ou après le JSON. Pas de markdown.`,
	User: `
Template de base:
- Objet: {{template_object}}
- Corps: {{template_content}}
- CTA: {{template_cta}}
- Footer: {{template_footer}}

Persona du contact: {{persona}}

Données expéditeur (identité): {{identity_data}}

Personnalise chaque champ (object, content, cta, footer) pour ce contact.
Réponds uniquement avec un objet JSON: {"object":"...","content":"...","cta":"...","footer":"..."}`,
	Temperature: 0.5,
	MaxTokens:   800,
}

// EmailTemplate is the base outreach message. Sender tokens are filled
// locally; the remaining tokens are left to the copywriter or to the static
// composer.
type EmailTemplate struct {
	Object  string `json:"object"`
	Content string `json:"content"`
	CTA     string `json:"cta"`
	Footer  string `json:"footer"`
}

var baseTemplate = EmailTemplate{
	Object: "Recherche {{intitulé du poste}}, pour {{company}}",
	Content: `
Bonjour,

Nous sommes à la recherche d'un(e) {{intitulé du poste}} en freelance pour {{company}}.

Ayant vu votre profil sur {{nom du réseau/site internet}}, nous serions intéressés d'en savoir plus sur votre expertise pour une potentielle collaboration.

Ci-suit, vous trouverez le brief/CDC de la mission :`,
	CTA: "https://trello.google-share.com/board",
	Footer: `
A vos retours,

{{sender_fullname}}
{{sender_website}}
{{sender_company}}`,
}

// Fill replaces tokens in every field and trims surrounding blank lines.
func (t EmailTemplate) Fill(values map[string]string) EmailTemplate {
	return EmailTemplate{
		Object:  strings.TrimSpace(fillTokens(t.Object, values)),
		Content: strings.TrimSpace(fillTokens(dedent(t.Content), values)),
		CTA:     strings.TrimSpace(fillTokens(t.CTA, values)),
		Footer:  strings.TrimSpace(fillTokens(dedent(t.Footer), values)),
	}
}

func fillTokens(s string, values map[string]string) string {
	if len(values) == 0 {
		return s
	}
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// dedent strips the common leading indentation of non-empty lines.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	prefix := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if prefix < 0 || n < prefix {
			prefix = n
		}
	}
	if prefix <= 0 {
		return s
	}
	for i, l := range lines {
		if len(l) >= prefix {
			lines[i] = l[prefix:]
		} else {
			lines[i] = strings.TrimLeft(l, " \t")
		}
	}
	return strings.Join(lines, "\n")
}
