package newsproxy

import (
	"fmt"
	"time"

	"github.com/newsfeed-app/backend/internal/models"
)

// FallbackNote marks a page served from the synthetic corpus.
const FallbackNote = "Using demo data - API unavailable"

// corpusRepetitions is how many variants of each seed article the corpus holds.
const corpusRepetitions = 10

var seedArticles = []models.Article{
	{
		Title:       "Breaking: Tech Innovation Reshapes Global Markets",
		Description: "Major technological advances are transforming how businesses operate worldwide, creating new opportunities and challenges.",
		Content:     "Technology continues to revolutionize industries across the globe...",
		URL:         "https://example.com/tech-innovation",
		Source:      models.Source{Name: "Tech News", URL: "https://example.com"},
	},
	{
		Title:       "Climate Summit Reaches Historic Agreement",
		Description: "World leaders unite on ambitious climate goals, setting new standards for environmental protection.",
		Content:     "In a landmark decision, global leaders have agreed to...",
		URL:         "https://example.com/climate-summit",
		Source:      models.Source{Name: "World News", URL: "https://example.com"},
	},
	{
		Title:       "Economic Recovery Shows Strong Signs of Growth",
		Description: "Latest economic indicators suggest robust recovery across major sectors.",
		Content:     "Economic data released today shows significant improvement...",
		URL:         "https://example.com/economic-recovery",
		Source:      models.Source{Name: "Business Daily", URL: "https://example.com"},
	},
	{
		Title:       "Space Exploration Enters New Era",
		Description: "Private companies lead ambitious missions to explore beyond Earth's orbit.",
		Content:     "The space industry is experiencing unprecedented growth...",
		URL:         "https://example.com/space-exploration",
		Source:      models.Source{Name: "Science Today", URL: "https://example.com"},
	},
	{
		Title:       "Healthcare Innovation Promises Better Outcomes",
		Description: "New medical technologies are improving patient care and treatment effectiveness.",
		Content:     "Revolutionary healthcare solutions are being developed...",
		URL:         "https://example.com/healthcare-innovation",
		Source:      models.Source{Name: "Health News", URL: "https://example.com"},
	},
	{
		Title:       "Education Transformation Through Digital Learning",
		Description: "Online platforms are revolutionizing how students learn and teachers instruct.",
		Content:     "The education sector is undergoing massive digital transformation...",
		URL:         "https://example.com/education-digital",
		Source:      models.Source{Name: "Education Weekly", URL: "https://example.com"},
	},
	{
		Title:       "Sports: Championship Finals Draw Record Viewership",
		Description: "Historic sporting event captures global attention with thrilling performances.",
		Content:     "The championship finals have broken all previous records...",
		URL:         "https://example.com/sports-championship",
		Source:      models.Source{Name: "Sports Network", URL: "https://example.com"},
	},
	{
		Title:       "Entertainment: New Blockbuster Breaks Box Office Records",
		Description: "Latest film release shatters opening weekend expectations worldwide.",
		Content:     "The highly anticipated movie has exceeded all projections...",
		URL:         "https://example.com/entertainment-blockbuster",
		Source:      models.Source{Name: "Entertainment Tonight", URL: "https://example.com"},
	},
	{
		Title:       "Science Discovery Opens New Research Possibilities",
		Description: "Groundbreaking findings could revolutionize our understanding of the universe.",
		Content:     "Scientists have made a remarkable discovery that...",
		URL:         "https://example.com/science-discovery",
		Source:      models.Source{Name: "Science Journal", URL: "https://example.com"},
	},
	{
		Title:       "Travel Industry Sees Unprecedented Recovery",
		Description: "Tourism rebounds strongly as travelers return to exploring the world.",
		Content:     "The travel sector is experiencing remarkable growth...",
		URL:         "https://example.com/travel-recovery",
		Source:      models.Source{Name: "Travel Magazine", URL: "https://example.com"},
	},
}

// CorpusSize is the number of articles in the synthetic corpus.
func CorpusSize() int {
	return len(seedArticles) * corpusRepetitions
}

// BuildCorpus expands the seed articles into the synthetic corpus. Repetition i
// suffixes titles and URLs with page i+1 and is dated i days before now.
func BuildCorpus(now time.Time) []models.Article {
	corpus := make([]models.Article, 0, CorpusSize())
	for i := 0; i < corpusRepetitions; i++ {
		published := now.Add(-time.Duration(i) * 24 * time.Hour).UTC().Format(time.RFC3339)
		for idx, seed := range seedArticles {
			a := seed
			a.Title = fmt.Sprintf("%s (Page %d)", seed.Title, i+1)
			a.URL = fmt.Sprintf("%s-page%d", seed.URL, i+1)
			a.Image = fmt.Sprintf("https://picsum.photos/400/300?random=%d", i*len(seedArticles)+idx+1)
			a.PublishedAt = published
			corpus = append(corpus, a)
		}
	}
	return corpus
}

// FallbackPage slices the synthetic corpus for q. Pages past the end yield an
// empty article list with the full corpus size as total.
func FallbackPage(q models.NewsQuery, now time.Time) *models.NewsPage {
	q = Normalize(q)
	corpus := BuildCorpus(now)

	// compare page numbers first so huge pages cannot overflow the offset
	start := len(corpus)
	if q.Page-1 <= len(corpus)/q.Max {
		start = (q.Page - 1) * q.Max
	}
	end := start + q.Max
	if end > len(corpus) {
		end = len(corpus)
	}

	articles := make([]models.Article, end-start)
	copy(articles, corpus[start:end])

	return &models.NewsPage{
		TotalArticles: len(corpus),
		Articles:      articles,
		Note:          FallbackNote,
	}
}
