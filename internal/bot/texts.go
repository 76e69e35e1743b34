package bot

// User-facing copy. The bot serves Hebrew-speaking users; keep replies in
// Hebrew and grab the literal file names from the vault so confirmations are
// copy-pasteable.

const PrivateMenu = `🤖 ברוכים הבאים לבוט!

בחרו פעולה:
1️⃣ יצירת קבוצה
2️⃣ מידע על הבוט`

const GroupMenu = `🤖 תפריט קבוצה:

בחרו פעולה:
1️⃣ שליחת תמונה עם שם
2️⃣ שליחת טקסט
3️⃣ קבלת תמונה שמורה
4️⃣ קבלת טקסט שמור`

const BotInfo = `📖 מידע על הבוט

🤖 בוט WhatsApp לניהול קבוצות ושמירת קבצים
⚡ פשוט, מהיר ויעיל`

const (
	promptImage        = "📷 אנא שלח תמונה עם השם שלה בכיתוב (Caption)"
	promptImageAgain   = "❌ אנא שלח תמונה עם שם בכיתוב (Caption)"
	promptText         = "📝 אנא שלח את הטקסט שברצונך לשמור:"
	promptTextName     = "📝 עכשיו שלח את השם לקובץ הטקסט:"
	promptSelectImage  = "\n💡 שלח מספר לקבלת התמונה:"
	promptSelectText   = "\n💡 שלח מספר לקבלת הטקסט:"
	listImagesHeader   = "📷 תמונות שמורות:\n\n"
	listTextsHeader    = "📄 טקסטים שמורים:\n\n"
	noticeNoImages     = "❌ אין תמונות שמורות עדיין."
	noticeNoTexts      = "❌ אין טקסטים שמורים עדיין."
	noticeImageSaved   = "✅ התמונה \"%s\" נשמרה בהצלחה!"
	noticeTextSaved    = "✅ קובץ הטקסט \"%s\" נשמר בהצלחה!"
	noticeImageSent    = "✅ התמונה \"%s\" נשלחה בהצלחה!"
	noticeTextSent     = "✅ הטקסט \"%s\" נשלח בהצלחה!"
	noticeSaveFailed   = "❌ שגיאה בשמירה. נסה שוב."
	noticeBadSelection = "❌ בחירה לא תקינה או שגיאה בשליחה. נסה שוב."
	noticeGroupFailed  = "❌ שגיאה ביצירת קבוצה. נסה שוב מאוחר יותר."
)

// Provisioning texts, injected into the group service at wiring time.
const (
	TextAlreadyActive = "⚠️ יש לך כבר קבוצה פעילה: \"%s\""
	TextGroupCreated  = "✅ נוצרה קבוצה חדשה: \"%s\"\n\n🔧 מגדיר הגדרות קבוצה..."
	TextGroupReady    = "✅ הקבוצה מוכנה לשימוש! הגדרות הוגדרו בהצלחה."
	TextGroupWelcome  = "🎉 ברוכים הבאים לקבוצה!\n\n📋 הגדרות הקבוצה:\n• ✅ ניתן לשלוח הודעות\n• ❌ לא ניתן להוסיף חברים\n\n" + GroupMenu
)

// keywordReplies answer greetings outside any wizard flow. Matched by
// case-insensitive substring, first hit wins.
var keywordReplies = []struct{ keyword, reply string }{
	{"שלום", "שלום! איך אפשר לעזור?"},
	{"היי", "היי! מה נשמע?"},
	{"תודה", "בבקשה! תמיד כאן לעזור 😊"},
}
