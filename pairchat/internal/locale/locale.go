// Package locale holds the user-facing strings of the chat client.
package locale

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key names a message in the catalog.
type Key string

const (
	UserSelf  Key = "user.self"
	UserOther Key = "user.other"

	NoticeStartFirst    Key = "notice.start.first"
	NoticeAwaitPartner  Key = "notice.await"
	NoticeRespond       Key = "notice.respond"
	NoticeRespondGuided Key = "notice.respond.guided"
	NoticeWaiting       Key = "notice.waiting"
	NoticeSlowPartner   Key = "notice.slow"
	NoticeTryLater      Key = "notice.trylater"
	NoticeChatOver      Key = "notice.over"
	NoticeThanks        Key = "notice.thanks"
	AlertTitle          Key = "alert.title"
	AlertNotYourTurn    Key = "alert.turn"
	AlertEmptyMessage   Key = "alert.empty"
	AlertTooShort       Key = "alert.short"
	AlertTooLong        Key = "alert.long"
	ConfirmStop         Key = "confirm.stop"
	ProgressShort       Key = "progress.short"
	ProgressEnough      Key = "progress.enough"
	ProgressTooLong     Key = "progress.long"
)

// Default is used when no language is configured or none matches.
var Default = language.Japanese

var entries = map[language.Tag]map[Key]string{
	language.Japanese: {
		UserSelf:            "あなた",
		UserOther:           "相手",
		NoticeStartFirst:    "新聞記事に関する発話で、あなたから対話を始めてください。相手には記事は見えていません。",
		NoticeAwaitPartner:  "相手のメッセージをお待ち下さい",
		NoticeRespond:       "あなたから発話してください",
		NoticeRespondGuided: "対話中に少なくとも２回「世間のコメント」を利用しながら自然に対話してください。「世間のコメント」を使用するときは、使用するコメントにチェックを入れてください。",
		NoticeWaiting:       "対話相手を待っています (%d s.)",
		NoticeSlowPartner:   "対話相手がなかなか見つかりません。もう少しお待ちください。",
		NoticeTryLater:      "現在対話相手が見つかりません。時間をおいて再度お試しください。",
		NoticeChatOver:      "対話は終了しました。",
		NoticeThanks:        "ご協力ありがとうございました。",
		AlertTitle:          "注意",
		AlertNotYourTurn:    "相手の返信を待ってからメッセージを送信してください。",
		AlertEmptyMessage:   "メッセージを入力してください。",
		AlertTooShort:       "規定の長さまであと%d発話です。チャットをまだ続けてください。",
		AlertTooLong:        "対話が十分な長さになりました。数回のやり取りで自然な形で対話を終了させて下さい。",
		ConfirmStop:         "チャットを終了しますか？",
		ProgressShort:       "あなたと対話相手の発話を合わせてあと%d発話で規定の長さに達します。チャットを続けて下さい。",
		ProgressEnough:      "チャットが規定の長さになりました。下の「終了」ボタンから対話を終了してください。",
		ProgressTooLong:     "チャットが長過ぎるようです。チャットを終了して下さい。",
	},
	language.English: {
		UserSelf:            "You",
		UserOther:           "Partner",
		NoticeStartFirst:    "Start the conversation with a remark about the news article. Your partner cannot see the article.",
		NoticeAwaitPartner:  "Please wait for your partner's message.",
		NoticeRespond:       "It is your turn to speak.",
		NoticeRespondGuided: "Use the supplementary comments at least twice during the conversation, and tick each comment you use.",
		NoticeWaiting:       "Waiting for a partner (%d s.)",
		NoticeSlowPartner:   "Finding a partner is taking longer than usual. Please keep waiting.",
		NoticeTryLater:      "No partner is available right now. Please try again later.",
		NoticeChatOver:      "The conversation is over.",
		NoticeThanks:        "Thank you for taking part.",
		AlertTitle:          "Notice",
		AlertNotYourTurn:    "Please wait for your partner's reply before sending.",
		AlertEmptyMessage:   "Please enter a message.",
		AlertTooShort:       "%d more messages are needed. Please keep chatting.",
		AlertTooLong:        "The conversation is long enough. Please wrap it up naturally within a few exchanges.",
		ConfirmStop:         "End the chat?",
		ProgressShort:       "%d more messages between you and your partner to reach the required length. Please keep chatting.",
		ProgressEnough:      "The chat has reached the required length. Use the stop control to end it.",
		ProgressTooLong:     "The chat is getting too long. Please end it.",
	},
}

var (
	cat     *catalog.Builder
	matcher language.Matcher
	tags    []language.Tag
)

func init() {
	cat = catalog.NewBuilder(catalog.Fallback(Default))
	tags = []language.Tag{language.Japanese, language.English}
	for _, tag := range tags {
		for k, msg := range entries[tag] {
			if err := cat.SetString(tag, string(k), msg); err != nil {
				panic(err)
			}
		}
	}
	matcher = language.NewMatcher(tags)
}

// Printer formats catalog messages for one language.
type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// New returns a printer for the best supported match of lang (a BCP 47 tag).
func New(lang string) *Printer {
	tag := Default
	if lang != "" {
		if req, err := language.Parse(lang); err == nil {
			_, idx, conf := matcher.Match(req)
			if conf != language.No {
				tag = tags[idx]
			}
		}
	}
	return &Printer{tag: tag, p: message.NewPrinter(tag, message.Catalog(cat))}
}

// Language returns the tag the printer resolved to.
func (p *Printer) Language() language.Tag { return p.tag }

// Text formats the message stored under k.
func (p *Printer) Text(k Key, args ...any) string {
	return p.p.Sprintf(string(k), args...)
}
