package demoserver

// PageVersion is one rendition of a page.
type PageVersion struct {
	HTML        string
	ContentType string
	Headers     map[string]string
	// Problems lists the accessibility defects this version carries on purpose.
	Problems []string
}

// PageDefinition holds all versions of a single page.
type PageDefinition struct {
	Path        string
	Description string
	// InSitemap lists the page in /sitemap.xml.
	InSitemap bool
	Versions  map[int]PageVersion
}

// GetAllPages returns all demo page definitions. Version 1 of each page is
// deliberately inaccessible; higher versions fix some or all of it.
func GetAllPages() []PageDefinition {
	return []PageDefinition{
		homePage(),
		productsPage(),
		contactPage(),
		aboutPage(),
		adminPage(),
		feedPage(),
	}
}

const nav = `<nav>
        <a href="/">Home</a>
        <a href="/products">Products</a>
        <a href="/contact">Contact</a>
        <a href="/about">About</a>
    </nav>`

func homePage() PageDefinition {
	return PageDefinition{
		Path:        "/",
		Description: "Landing page with images, a hero banner and call-to-action links",
		InSitemap:   true,
		Versions: map[int]PageVersion{
			1: {
				Problems: []string{"html-has-lang", "image-alt", "color-contrast", "button-name", "link-name"},
				HTML: `<!DOCTYPE html>
<html>
<head><title>Demo Shop</title></head>
<body>
    ` + nav + `
    <div class="hero" style="background:#fff">
        <img src="/static/hero.png">
        <p style="color:#ccc">Spring sale: everything must go</p>
        <button></button>
        <a href="/products"><img src="/static/arrow.png"></a>
    </div>
    <a href="/private/admin">Staff</a>
</body>
</html>`,
			},
			2: {
				HTML: `<!DOCTYPE html>
<html lang="en">
<head><title>Demo Shop</title></head>
<body>
    ` + nav + `
    <main>
        <h1>Demo Shop</h1>
        <img src="/static/hero.png" alt="Shelves stocked with spring products">
        <p style="color:#333">Spring sale: everything must go</p>
        <button type="button">Show offers</button>
        <a href="/products"><img src="/static/arrow.png" alt="Browse products"></a>
    </main>
</body>
</html>`,
			},
		},
	}
}

func productsPage() PageDefinition {
	return PageDefinition{
		Path:        "/products",
		Description: "Product listing with a price table",
		InSitemap:   true,
		Versions: map[int]PageVersion{
			1: {
				Problems: []string{"image-alt", "duplicate-id", "td-has-header", "heading-order"},
				HTML: `<!DOCTYPE html>
<html lang="en">
<head><title>Products</title></head>
<body>
    ` + nav + `
    <h1>Products</h1>
    <h4>Featured</h4>
    <div id="item"><img src="/static/p1.png"> Kettle</div>
    <div id="item"><img src="/static/p2.png"> Toaster</div>
    <table>
        <tr><td>Item</td><td>Price</td></tr>
        <tr><td>Kettle</td><td>$20</td></tr>
        <tr><td>Toaster</td><td>$35</td></tr>
    </table>
</body>
</html>`,
			},
			2: {
				Problems: []string{"td-has-header"},
				HTML: `<!DOCTYPE html>
<html lang="en">
<head><title>Products</title></head>
<body>
    ` + nav + `
    <h1>Products</h1>
    <h2>Featured</h2>
    <div id="item-1"><img src="/static/p1.png" alt="Steel kettle"> Kettle</div>
    <div id="item-2"><img src="/static/p2.png" alt="Two-slot toaster"> Toaster</div>
    <table>
        <tr><td>Item</td><td>Price</td></tr>
        <tr><td>Kettle</td><td>$20</td></tr>
        <tr><td>Toaster</td><td>$35</td></tr>
    </table>
</body>
</html>`,
			},
			3: {
				HTML: `<!DOCTYPE html>
<html lang="en">
<head><title>Products</title></head>
<body>
    ` + nav + `
    <main>
        <h1>Products</h1>
        <h2>Featured</h2>
        <div id="item-1"><img src="/static/p1.png" alt="Steel kettle"> Kettle</div>
        <div id="item-2"><img src="/static/p2.png" alt="Two-slot toaster"> Toaster</div>
        <table>
            <caption>Prices</caption>
            <tr><th scope="col">Item</th><th scope="col">Price</th></tr>
            <tr><td>Kettle</td><td>$20</td></tr>
            <tr><td>Toaster</td><td>$35</td></tr>
        </table>
    </main>
</body>
</html>`,
			},
		},
	}
}

func contactPage() PageDefinition {
	return PageDefinition{
		Path:        "/contact",
		Description: "Contact form",
		InSitemap:   true,
		Versions: map[int]PageVersion{
			1: {
				Problems: []string{"label", "select-name", "autocomplete-valid"},
				HTML: `<!DOCTYPE html>
<html lang="en">
<head><title>Contact us</title></head>
<body>
    ` + nav + `
    <h1>Contact us</h1>
    <form action="/contact" method="post">
        <input type="text" name="name" placeholder="Name">
        <input type="email" name="email" autocomplete="mail">
        <select name="topic"><option>Orders</option><option>Returns</option></select>
        <textarea name="message"></textarea>
        <input type="submit">
    </form>
</body>
</html>`,
			},
			2: {
				HTML: `<!DOCTYPE html>
<html lang="en">
<head><title>Contact us</title></head>
<body>
    ` + nav + `
    <main>
        <h1>Contact us</h1>
        <form action="/contact" method="post">
            <label for="name">Name</label>
            <input id="name" type="text" name="name" autocomplete="name">
            <label for="email">Email</label>
            <input id="email" type="email" name="email" autocomplete="email">
            <label for="topic">Topic</label>
            <select id="topic" name="topic"><option>Orders</option><option>Returns</option></select>
            <label for="message">Message</label>
            <textarea id="message" name="message"></textarea>
            <input type="submit" value="Send">
        </form>
    </main>
</body>
</html>`,
			},
		},
	}
}

func aboutPage() PageDefinition {
	return PageDefinition{
		Path:        "/about",
		Description: "Company page with an embedded video",
		InSitemap:   true,
		Versions: map[int]PageVersion{
			1: {
				Problems: []string{"frame-title", "meta-viewport"},
				HTML: `<!DOCTYPE html>
<html lang="en">
<head>
    <title>About</title>
    <meta name="viewport" content="width=device-width, user-scalable=no">
</head>
<body>
    ` + nav + `
    <h1>About us</h1>
    <iframe src="https://video.example.invalid/embed/1"></iframe>
</body>
</html>`,
			},
			2: {
				HTML: `<!DOCTYPE html>
<html lang="en">
<head>
    <title>About</title>
    <meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
    ` + nav + `
    <main>
        <h1>About us</h1>
        <iframe src="https://video.example.invalid/embed/1" title="Company introduction video"></iframe>
    </main>
</body>
</html>`,
			},
		},
	}
}

// adminPage is listed in the sitemap but disallowed by robots.txt.
func adminPage() PageDefinition {
	return PageDefinition{
		Path:        "/private/admin",
		Description: "Staff area excluded by robots.txt",
		InSitemap:   true,
		Versions: map[int]PageVersion{
			1: {
				HTML: `<!DOCTYPE html>
<html><head><title>Admin</title></head><body><img src="/static/logo.png"></body></html>`,
			},
		},
	}
}

func feedPage() PageDefinition {
	return PageDefinition{
		Path:        "/feed.xml",
		Description: "RSS feed, not an HTML document",
		InSitemap:   true,
		Versions: map[int]PageVersion{
			1: {
				ContentType: "application/rss+xml",
				HTML: `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Demo Shop</title><link>/</link><description>News</description></channel></rss>`,
			},
		},
	}
}
