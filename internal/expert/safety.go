package expert

import "strings"

// safetyKeywords is the bilingual trigger list for the safety protocol.
// Matching is plain case-insensitive substring containment; over-matching
// is acceptable here, under-matching is not.
var safetyKeywords = []string{
	"התאבדות", "לשים קץ", "למות", "אין טעם לחיים", "סמים", "סם", "קוקאין", "הרואין",
	"אקסטזי", "מריחואנה", "פגיעה עצמית", "חיתוך", "לפגוע בעצמי", "אלימות", "לרצוח",
	"רצח", "נשק", "פצצה", "טרור", "פיגוע", "שוד", "גניבה", "הונאה", "מעשה פלילי",
	"suicide", "self-harm", "kill myself", "drugs", "cocaine", "heroin", "murder",
	"weapon", "bomb", "terror", "illegal", "overdose", "cutting", "end my life",
}

// SafetyScan reports whether the message contains any safety-protocol
// keyword. It never errors and never blocks the pipeline.
func SafetyScan(message string) bool {
	msg := strings.ToLower(message)
	for _, kw := range safetyKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
