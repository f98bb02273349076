package browser

// registryJS installs a per-document node registry. Each node gets one id for
// its lifetime; a lookup of a detached node fails so callers see a stale handle.
const registryJS = `
const INTERACTIVE = 'a[href], button, input, select, textarea, label, summary, [role="button"], [role="checkbox"], [role="link"], [onclick], [tabindex]:not([tabindex="-1"])';
const reg = window.__seckillRegistry || (window.__seckillRegistry = (() => {
	let seq = 0;
	const ids = new WeakMap();
	const nodes = new Map();
	const handle = (el) => {
		let id = ids.get(el);
		if (!id) {
			id = "h" + (++seq);
			ids.set(el, id);
			nodes.set(id, new WeakRef(el));
		}
		return id;
	};
	const lookup = (id) => {
		const ref = nodes.get(id);
		const el = ref && ref.deref();
		if (!el || !el.isConnected) {
			nodes.delete(id);
			return null;
		}
		return el;
	};
	const label = (el) => (el.innerText || el.value || el.getAttribute("aria-label") || el.getAttribute("title") || "").trim();
	const interactive = (el) => el.matches(INTERACTIVE) ||
		window.getComputedStyle(el).cursor === "pointer" ||
		typeof el.onclick === "function";
	const visible = (el) => {
		const r = el.getBoundingClientRect();
		const s = window.getComputedStyle(el);
		return r.width > 0 && r.height > 0 && s.visibility !== "hidden" && s.display !== "none";
	};
	const describe = (el, order) => {
		const r = el.getBoundingClientRect();
		let depth = 0;
		for (let p = el.parentElement; p; p = p.parentElement) depth++;
		return {
			handle: handle(el),
			tag: el.tagName.toLowerCase(),
			role: el.getAttribute("role") || "",
			type: el.getAttribute("type") || "",
			text: label(el).slice(0, 200),
			className: typeof el.className === "string" ? el.className : "",
			box: { x: r.left, y: r.top, width: r.width, height: r.height },
			depth: depth,
			order: order,
			pointer: window.getComputedStyle(el).cursor === "pointer",
			onclick: typeof el.onclick === "function" || el.hasAttribute("onclick"),
			disabled: !!el.disabled || el.getAttribute("aria-disabled") === "true",
		};
	};
	// positions indexes every element in document order. Indexes are
	// document-wide, so orders from different queries on one DOM compare.
	const positions = () => {
		const pos = new WeakMap();
		let i = 0;
		for (const el of document.getElementsByTagName("*")) pos.set(el, i++);
		return (el) => (pos.has(el) ? pos.get(el) : i);
	};
	return { handle, lookup, label, interactive, visible, describe, positions };
})());
`

const textSampleJS = `(arg) => {
	const body = document.body;
	if (!body) return "";
	const text = body.innerText || "";
	return arg.max > 0 ? text.slice(0, arg.max) : text;
}`

const interactiveCountJS = `(arg) => {` + registryJS + `
	return document.querySelectorAll(INTERACTIVE).length;
}`

const viewportJS = `(arg) => ({ x: 0, y: 0, width: window.innerWidth, height: window.innerHeight })`

const queryAllJS = `(arg) => {` + registryJS + `
	const pos = reg.positions();
	const out = [];
	document.querySelectorAll(arg.selector).forEach((el) => out.push(reg.describe(el, pos(el))));
	return out;
}`

const controlsSelector = `a, button, input, label, span, div, i, em, b, strong, li, [role="button"]`
const containersSelector = `div, section, form, footer, ul, li, table, tr, td`

const keywordsJS = `(arg) => {` + registryJS + `
	const keywords = arg.keywords.map((k) => k.toLowerCase());
	const pos = reg.positions();
	const out = [];
	for (const el of document.querySelectorAll(arg.selector)) {
		if (!reg.visible(el)) continue;
		const text = reg.label(el);
		if (!text || (arg.max > 0 && text.length > arg.max)) continue;
		const low = text.toLowerCase();
		if (!keywords.some((k) => low.includes(k))) continue;
		out.push(reg.describe(el, pos(el)));
		if (out.length >= arg.limit) break;
	}
	return out;
}`

const descendantsJS = `(arg) => {` + registryJS + `
	const root = reg.lookup(arg.handle);
	if (!root) return { stale: true, elements: [] };
	const pos = reg.positions();
	const out = [];
	for (const el of root.querySelectorAll("*")) {
		if (reg.interactive(el) && reg.visible(el)) out.push(reg.describe(el, pos(el)));
		if (out.length >= arg.limit) break;
	}
	return { stale: false, elements: out };
}`

const invokeJS = `(arg) => {` + registryJS + `
	const el = reg.lookup(arg.handle);
	if (!el) return { ok: false, stale: true };
	try {
		let target = el;
		if (arg.mode === "ancestor") {
			target = null;
			for (let p = el.parentElement; p; p = p.parentElement) {
				if (reg.interactive(p)) { target = p; break; }
			}
			if (!target) return { ok: false, error: "no interactive ancestor" };
		}
		target.scrollIntoView({ block: "center", inline: "center" });
		if (arg.mode === "pointer") {
			const r = target.getBoundingClientRect();
			const opts = {
				bubbles: true, cancelable: true, view: window, button: 0,
				clientX: r.left + r.width / 2, clientY: r.top + r.height / 2,
			};
			target.dispatchEvent(new PointerEvent("pointerdown", opts));
			target.dispatchEvent(new MouseEvent("mousedown", opts));
			target.dispatchEvent(new PointerEvent("pointerup", opts));
			target.dispatchEvent(new MouseEvent("mouseup", opts));
			target.dispatchEvent(new MouseEvent("click", opts));
		} else {
			if (typeof target.click !== "function") return { ok: false, error: "element has no click()" };
			target.click();
		}
		return { ok: true };
	} catch (e) {
		return { ok: false, error: String((e && e.message) || e) };
	}
}`
