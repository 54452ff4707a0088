package scraper

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Alias1177/LottoPredictor/models"
	"github.com/PuerkitoBio/goquery"
)

// Date layouts of the results site, after ordinal suffixes are removed
const (
	weekdayDateLayout = "Monday 2 January 2006"
	plainDateLayout   = "2 January 2006"
)

var (
	ErrNoResultBox = errors.New("result box not found")
	ErrNoTable     = errors.New("results table not found")

	ordinalSuffix = regexp.MustCompile(`(\d)(st|nd|rd|th)`)
	nonDigit      = regexp.MustCompile(`[^\d]`)
)

// ParseDrawDate reads "Saturday 16th March 2024" or "16th March 2024"
func ParseDrawDate(s string) (time.Time, error) {
	text := RemoveOrdinalSuffix(strings.TrimSpace(s))
	if t, err := time.Parse(weekdayDateLayout, text); err == nil {
		return t, nil
	}
	t, err := time.Parse(plainDateLayout, text)
	if err != nil {
		return time.Time{}, fmt.Errorf("draw date %q: %w", s, err)
	}
	return t, nil
}

// RemoveOrdinalSuffix turns "16th March 2024" into "16 March 2024"
func RemoveOrdinalSuffix(s string) string {
	return ordinalSuffix.ReplaceAllString(s, "$1")
}

// ParseJackpot keeps only the digits of s ("£4,026,427" -> 4026427).
// Empty or digitless input is a zero jackpot.
func ParseJackpot(s string) int64 {
	digits := nonDigit.ReplaceAllString(s, "")
	if digits == "" {
		return 0
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseBall(s *goquery.Selection) (int, error) {
	text := strings.TrimSpace(s.Text())
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("ball %q: %w", text, err)
	}
	return n, nil
}

func parseBalls(s *goquery.Selection) ([]int, error) {
	var numbers []int
	var err error
	s.EachWithBreak(func(_ int, ball *goquery.Selection) bool {
		var n int
		n, err = parseBall(ball)
		if err != nil {
			return false
		}
		numbers = append(numbers, n)
		return true
	})
	return numbers, err
}

// ParseLatest reads the latest draw from the results page
func ParseLatest(r io.Reader) (models.ScrapedDraw, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return models.ScrapedDraw{}, fmt.Errorf("parse results page: %w", err)
	}

	box := doc.Find("div.resultBox").First()
	if box.Length() == 0 {
		return models.ScrapedDraw{}, ErrNoResultBox
	}

	drawDate, err := ParseDrawDate(box.Find("div.latestHeader.lotto span.smallerHeading").First().Text())
	if err != nil {
		return models.ScrapedDraw{}, err
	}

	numbers, err := parseBalls(box.Find("div.result.lotto-ball.floatLeft"))
	if err != nil {
		return models.ScrapedDraw{}, err
	}
	if len(numbers) == 0 {
		return models.ScrapedDraw{}, fmt.Errorf("no balls for %s", drawDate.Format(time.DateOnly))
	}

	bonusSel := box.Find("div.result.lotto-bonus-ball.floatLeft").First()
	if bonusSel.Length() == 0 {
		return models.ScrapedDraw{}, fmt.Errorf("no bonus ball for %s", drawDate.Format(time.DateOnly))
	}
	bonus, err := parseBall(bonusSel)
	if err != nil {
		return models.ScrapedDraw{}, err
	}

	sort.Ints(numbers)
	return models.ScrapedDraw{
		DrawDate:  drawDate,
		Numbers:   numbers,
		BonusBall: bonus,
		Jackpot:   ParseJackpot(box.Find("span.resultJackpot").First().Text()),
	}, nil
}

// ParseArchiveLinks returns the hrefs of the per-year archive pages
func ParseArchiveLinks(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse archive page: %w", err)
	}

	var links []string
	doc.Find("ul.bullet li a").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && strings.TrimSpace(href) != "" {
			links = append(links, strings.TrimSpace(href))
		}
	})
	return links, nil
}

// RowError describes a table row that could not be parsed
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

// ParseYearTable reads every draw of a yearly archive table. Rows that fail
// to parse are skipped and reported in the returned RowError slice.
func ParseYearTable(r io.Reader) ([]models.ScrapedDraw, []RowError, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parse year page: %w", err)
	}

	table := doc.Find("table.table.lotto.mobFormat").First()
	if table.Length() == 0 {
		return nil, nil, ErrNoTable
	}

	var draws []models.ScrapedDraw
	var rowErrs []RowError
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return // header
		}
		draw, err := parseYearRow(tr)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: i, Err: err})
			return
		}
		draws = append(draws, draw)
	})
	return draws, rowErrs, nil
}

func parseYearRow(tr *goquery.Selection) (models.ScrapedDraw, error) {
	cells := tr.Find("td")
	if cells.Length() < 3 {
		return models.ScrapedDraw{}, fmt.Errorf("want 3 cells, got %d", cells.Length())
	}

	drawDate, err := ParseDrawDate(cells.Eq(0).Find("a").First().Text())
	if err != nil {
		return models.ScrapedDraw{}, err
	}

	balls, err := parseBalls(cells.Eq(1).Find("div.result"))
	if err != nil {
		return models.ScrapedDraw{}, err
	}
	// the last ball of a row is the bonus
	if len(balls) < 2 {
		return models.ScrapedDraw{}, fmt.Errorf("want main balls and a bonus ball, got %d", len(balls))
	}
	numbers := balls[:len(balls)-1]
	sort.Ints(numbers)

	return models.ScrapedDraw{
		DrawDate:  drawDate,
		Numbers:   numbers,
		BonusBall: balls[len(balls)-1],
		Jackpot:   ParseJackpot(cells.Eq(2).Find("strong").First().Text()),
	}, nil
}
