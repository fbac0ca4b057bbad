package style

// builtinStyles 内置风格，顺序即展示顺序。文案属于配置数据。
var builtinStyles = []Definition{
	{
		ID:     DefaultID,
		Prefix: "Create an image:",
		Suffix: "Digital art style, clear details, vibrant colors.",
	},
	{
		ID:     "comic",
		Prefix: "Create an image in comic book style:",
		Suffix: "Requirements: 1) bold black ink outlines of uniform weight; " +
			"2) flat cel shading with at most three tones per color; " +
			"3) saturated primary palette (red, yellow, blue) with halftone dot texture in the shadows; " +
			"4) dramatic top-left key light with hard-edged shadows; " +
			"5) dynamic composition with a clear foreground subject, no text or speech bubbles.",
	},
	{
		ID:     "photorealistic",
		Prefix: "Create a photorealistic image:",
		Suffix: "Requirements: 1) shot on a full-frame camera with a 50mm lens at f/2.8; " +
			"2) natural, physically plausible lighting with soft falloff and accurate reflections; " +
			"3) true-to-life muted color grading, no oversaturation; " +
			"4) fine surface detail (skin pores, fabric weave, material grain); " +
			"5) shallow depth of field with a sharp subject and creamy background bokeh.",
	},
	{
		ID:     "watercolor",
		Prefix: "Create an image in watercolor style:",
		Suffix: "Requirements: 1) loose wet-on-wet washes with soft bleeding edges; " +
			"2) visible cold-press paper texture and unpainted white highlights; " +
			"3) limited pastel palette of four to five harmonious hues; " +
			"4) diffuse daylight, no hard shadows; " +
			"5) thin hand-drawn pencil or ink lines only where shapes need definition.",
	},
	{
		ID:     "pixel_art",
		Prefix: "Create an image in pixel art style:",
		Suffix: "Requirements: 1) low resolution grid look (about 128x128 logical pixels) with crisp square pixels; " +
			"2) no anti-aliasing, gradients or blur; " +
			"3) restricted 16-color palette in the spirit of classic 16-bit consoles; " +
			"4) single-pixel dark outlines around characters and objects; " +
			"5) dithering patterns for shading and a side-view or isometric composition.",
	},
}
